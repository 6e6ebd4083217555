package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/ratelimit"
	"chat-gateway/internal/usecase"
)

const serviceName = "chat-gateway"

// ChatAPI is the gateway surface the dispatcher needs from the service
// layer. *usecase.ChatService satisfies this interface.
type ChatAPI interface {
	RuntimeID() string
	CSRFToken(sessionKey string) string
	ValidateCSRF(sessionKey, token string) bool
	SettingsGet() map[string]any
	SettingsSet(values map[string]any)
	Poll(in usecase.PollInput) usecase.PollOutput
	Message(ctx context.Context, in usecase.MessageInput) (usecase.MessageOutput, error)
	ChatCreate(id, name string) domain.ContextSummary
	ChatLoad(id string) (domain.Context, error)
	ChatReset(id string)
	ChatRemove(id string)
	ChatExport(id string) (usecase.ExportOutput, error)
	Pause(id string, paused bool) bool
	Stats() usecase.MemoryStats
	ClearNotifications()
}

// routeID is the closed enumeration of dispatchable routes.
type routeID int

const (
	routeHealth routeID = iota
	routeCSRFToken
	routeSettingsGet
	routeSettingsSet
	routePoll
	routeMessageAsync
	routeChatCreate
	routeChatLoad
	routeChatReset
	routeChatRemove
	routeChatExport
	routePause
	routeMemoryDashboard
	routeTasksGet
	routeTaskKill
)

type routeSpec struct {
	id    routeID
	path  string
	class ratelimit.Class
	fn    func(h *Handler, rc *request) (int, any)
}

// routes is the static dispatch table. A request path matches a route
// exactly or as a hierarchical sub-resource (route path plus a separator).
var routes = []routeSpec{
	{routeHealth, "/health", ratelimit.ClassPolling, (*Handler).health},
	{routeCSRFToken, "/csrf_token", ratelimit.ClassDefault, (*Handler).csrfToken},
	{routeSettingsGet, "/settings_get", ratelimit.ClassDefault, (*Handler).settingsGet},
	{routeSettingsSet, "/settings_set", ratelimit.ClassDefault, (*Handler).settingsSet},
	{routePoll, "/poll", ratelimit.ClassPolling, (*Handler).poll},
	{routeMessageAsync, "/message_async", ratelimit.ClassExpensive, (*Handler).messageAsync},
	{routeChatCreate, "/chat_create", ratelimit.ClassDefault, (*Handler).chatCreate},
	{routeChatLoad, "/chat_load", ratelimit.ClassDefault, (*Handler).chatLoad},
	{routeChatReset, "/chat_reset", ratelimit.ClassDefault, (*Handler).chatReset},
	{routeChatRemove, "/chat_remove", ratelimit.ClassDefault, (*Handler).chatRemove},
	{routeChatExport, "/chat_export", ratelimit.ClassDefault, (*Handler).chatExport},
	{routePause, "/pause", ratelimit.ClassDefault, (*Handler).pause},
	{routeMemoryDashboard, "/memory_dashboard", ratelimit.ClassDefault, (*Handler).memoryDashboard},
	{routeTasksGet, "/tasks_get", ratelimit.ClassDefault, (*Handler).tasksGet},
	{routeTaskKill, "/task_kill", ratelimit.ClassDefault, (*Handler).taskKill},
}

// Handler dispatches API Gateway proxy events to route handlers, applying
// CORS, rate limiting, CSRF validation and the error envelope.
type Handler struct {
	api     ChatAPI
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewHandler validates dependencies and returns a ready dispatcher.
func NewHandler(api ChatAPI, limiter *ratelimit.Limiter) (*Handler, error) {
	if api == nil {
		return nil, errors.New("handler: chat api must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("handler: rate limiter must not be nil")
	}
	return &Handler{api: api, limiter: limiter, now: time.Now}, nil
}

// request carries per-request state into route handlers.
type request struct {
	ctx        context.Context
	event      events.APIGatewayProxyRequest
	sessionKey string
}

// decode unmarshals the request body into v. A missing or malformed body is
// treated as an empty object, never rejected.
func (rc *request) decode(v any) {
	body := strings.TrimSpace(rc.event.Body)
	if body == "" {
		return
	}
	_ = json.Unmarshal([]byte(body), v)
}

// Handle is the Lambda entry point. A response is always produced; panics
// and unexpected errors become a 500 JSON envelope.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	headers := corsHeaders()
	headers["X-Correlation-Id"] = correlationID(event)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic", "path", event.Path, "panic", r)
			resp = jsonResponse(http.StatusInternalServerError, headers, map[string]any{
				"error":   "internal server error",
				"message": fmt.Sprint(r),
			})
			err = nil
		}
	}()

	if event.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	route, matched := matchRoute(event.Path)
	class := ratelimit.ClassDefault
	if matched {
		class = route.class
	}

	result := h.limiter.Check(clientKey(event), class, h.now())
	headers["X-RateLimit-Remaining"] = strconv.Itoa(result.Remaining)
	if result.Limited {
		headers["Retry-After"] = strconv.Itoa(result.RetryAfterSeconds)
		return jsonResponse(http.StatusTooManyRequests, headers, map[string]any{
			"error":      "rate limit exceeded",
			"message":    "Too many requests. Please slow down.",
			"retryAfter": result.RetryAfterSeconds,
		}), nil
	}

	if !matched {
		return h.fallback(event, headers), nil
	}

	rc := &request{ctx: ctx, event: event, sessionKey: sessionKey(event)}

	if route.id != routeCSRFToken && event.HTTPMethod == http.MethodPost {
		if token := headerValue(event, "X-CSRF-Token"); token != "" && !h.api.ValidateCSRF(rc.sessionKey, token) {
			return jsonResponse(http.StatusForbidden, headers, map[string]any{
				"error": "invalid CSRF token",
			}), nil
		}
	}

	status, body := route.fn(h, rc)
	return jsonResponse(status, headers, body), nil
}

// fallback handles unmatched paths: leaf API calls (POST) get a 404, other
// requests a service-info body.
func (h *Handler) fallback(event events.APIGatewayProxyRequest, headers map[string]string) events.APIGatewayProxyResponse {
	if event.HTTPMethod == http.MethodPost {
		return jsonResponse(http.StatusNotFound, headers, map[string]any{
			"error": fmt.Sprintf("Endpoint %s not found", event.Path),
		})
	}
	return jsonResponse(http.StatusOK, headers, map[string]any{
		"service":    serviceName,
		"status":     "ok",
		"runtime_id": h.api.RuntimeID(),
		"timestamp":  h.now(),
	})
}

func matchRoute(path string) (routeSpec, bool) {
	for _, r := range routes {
		if path == r.path {
			return r, true
		}
	}
	for _, r := range routes {
		if strings.HasPrefix(path, r.path+"/") {
			return r, true
		}
	}
	return routeSpec{}, false
}

// errorStatus maps a service error to its HTTP status and JSON body. The
// chat path never reaches this for upstream failures; those are degraded
// reply text by contract.
func errorStatus(err error) (int, any) {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		switch ue.Code {
		case usecase.ErrorNotFound:
			return http.StatusNotFound, map[string]any{"error": ue.Reason}
		case usecase.ErrorInvalidInput:
			return http.StatusBadRequest, map[string]any{"error": ue.Reason}
		case usecase.ErrorRateLimited:
			return http.StatusTooManyRequests, map[string]any{"error": ue.Reason}
		}
	}
	return http.StatusInternalServerError, map[string]any{
		"error":   "internal server error",
		"message": err.Error(),
	}
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, X-CSRF-Token, X-Correlation-Id",
	}
}

func jsonResponse(status int, headers map[string]string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		slog.Error("marshal response", "err", err)
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"internal server error","message":"response serialization failed"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(raw),
	}
}

// headerValue does a case-insensitive header lookup on the proxy event.
func headerValue(event events.APIGatewayProxyRequest, name string) string {
	for k, v := range event.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func correlationID(event events.APIGatewayProxyRequest) string {
	if id := headerValue(event, "X-Correlation-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// clientKey identifies the caller for rate limiting: the source IP from the
// proxy event, or the first X-Forwarded-For hop when the event lacks one.
func clientKey(event events.APIGatewayProxyRequest) string {
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		return ip
	}
	if fwd := headerValue(event, "X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return "unknown"
}

// sessionKey extracts the session cookie value, falling back to the shared
// default key for cookie-less clients.
func sessionKey(event events.APIGatewayProxyRequest) string {
	cookies := headerValue(event, "Cookie")
	for _, part := range strings.Split(cookies, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "session="); ok && v != "" {
			return v
		}
	}
	return ""
}
