package handler

import (
	"io"
	"net"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// ServeHTTP adapts the dispatcher to net/http for local development. The
// incoming request is translated to the proxy event shape so the exact same
// dispatch, rate-limit and error behavior applies.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	sourceIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		sourceIP = host
	}

	event := events.APIGatewayProxyRequest{
		Path:       r.URL.Path,
		HTTPMethod: r.Method,
		Headers:    headers,
		Body:       string(body),
	}
	event.RequestContext.Identity.SourceIP = sourceIP

	resp, err := h.Handle(r.Context(), event)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
