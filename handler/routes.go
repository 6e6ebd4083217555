package handler

import (
	"net/http"

	"chat-gateway/internal/usecase"
)

func (h *Handler) health(_ *request) (int, any) {
	return http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": h.now(),
	}
}

func (h *Handler) csrfToken(rc *request) (int, any) {
	return http.StatusOK, map[string]any{
		"ok":         true,
		"token":      h.api.CSRFToken(rc.sessionKey),
		"runtime_id": h.api.RuntimeID(),
	}
}

func (h *Handler) settingsGet(_ *request) (int, any) {
	return http.StatusOK, map[string]any{
		"settings": h.api.SettingsGet(),
	}
}

func (h *Handler) settingsSet(rc *request) (int, any) {
	var values map[string]any
	rc.decode(&values)
	h.api.SettingsSet(values)
	return http.StatusOK, map[string]any{
		"success": true,
		"message": "Settings updated for this instance only; they are not persisted.",
	}
}

func (h *Handler) poll(rc *request) (int, any) {
	var in struct {
		Context           string `json:"context"`
		LogFrom           int    `json:"log_from"`
		NotificationsFrom int    `json:"notifications_from"`
	}
	rc.decode(&in)
	out := h.api.Poll(usecase.PollInput{
		ContextID:         in.Context,
		LogFrom:           in.LogFrom,
		NotificationsFrom: in.NotificationsFrom,
	})
	return http.StatusOK, map[string]any{
		"context":       out.ContextID,
		"log_guid":      out.LogGUID,
		"logs":          out.Logs,
		"paused":        out.Paused,
		"contexts":      out.Contexts,
		"notifications": out.Notifications,
		"timestamp":     out.Timestamp,
	}
}

func (h *Handler) messageAsync(rc *request) (int, any) {
	var in struct {
		Text      string `json:"text"`
		Context   string `json:"context"`
		MessageID string `json:"message_id"`
	}
	rc.decode(&in)
	out, err := h.api.Message(rc.ctx, usecase.MessageInput{
		Text:      in.Text,
		ContextID: in.Context,
		MessageID: in.MessageID,
	})
	if err != nil {
		return errorStatus(err)
	}
	return http.StatusOK, map[string]any{
		"context":    out.ContextID,
		"message_id": out.MessageID,
		"response":   out.Response,
	}
}

func (h *Handler) chatCreate(rc *request) (int, any) {
	var in struct {
		NewContext string `json:"new_context"`
		Name       string `json:"name"`
	}
	rc.decode(&in)
	summary := h.api.ChatCreate(in.NewContext, in.Name)
	return http.StatusOK, map[string]any{
		"ok":         true,
		"ctxid":      summary.ID,
		"context":    summary.ID,
		"name":       summary.Name,
		"created_at": summary.CreatedAt,
	}
}

func (h *Handler) chatLoad(rc *request) (int, any) {
	var in struct {
		Context string `json:"context"`
	}
	rc.decode(&in)
	conv, err := h.api.ChatLoad(in.Context)
	if err != nil {
		return errorStatus(err)
	}
	return http.StatusOK, map[string]any{
		"context": conv.ID,
		"logs":    conv.Log,
		"name":    conv.Name,
	}
}

func (h *Handler) chatReset(rc *request) (int, any) {
	var in struct {
		Context string `json:"context"`
	}
	rc.decode(&in)
	h.api.ChatReset(in.Context)
	return http.StatusOK, map[string]any{"success": true}
}

func (h *Handler) chatRemove(rc *request) (int, any) {
	var in struct {
		Context string `json:"context"`
	}
	rc.decode(&in)
	h.api.ChatRemove(in.Context)
	return http.StatusOK, map[string]any{"success": true}
}

func (h *Handler) chatExport(rc *request) (int, any) {
	var in struct {
		Context string `json:"context"`
	}
	rc.decode(&in)
	out, err := h.api.ChatExport(in.Context)
	if err != nil {
		return errorStatus(err)
	}
	return http.StatusOK, map[string]any{
		"context":     out.ContextID,
		"name":        out.Name,
		"logs":        out.Logs,
		"exported_at": out.ExportedAt,
	}
}

func (h *Handler) pause(rc *request) (int, any) {
	var in struct {
		Context string `json:"context"`
		Paused  *bool  `json:"paused"`
	}
	rc.decode(&in)
	// Absent flag means pause.
	paused := true
	if in.Paused != nil {
		paused = *in.Paused
	}
	ok := h.api.Pause(in.Context, paused)
	return http.StatusOK, map[string]any{
		"success": ok,
		"paused":  ok && paused,
	}
}

func (h *Handler) memoryDashboard(rc *request) (int, any) {
	var in struct {
		Action string `json:"action"`
	}
	rc.decode(&in)
	switch in.Action {
	case "stats":
		stats := h.api.Stats()
		return http.StatusOK, map[string]any{
			"success":        true,
			"contexts":       stats.Contexts,
			"sessions":       stats.Sessions,
			"notifications":  stats.Notifications,
			"runtime_id":     stats.RuntimeID,
			"uptime_seconds": stats.UptimeSeconds,
		}
	case "notifications_clear":
		h.api.ClearNotifications()
		return http.StatusOK, map[string]any{"success": true}
	default:
		return http.StatusOK, map[string]any{
			"success": false,
			"error":   "Unknown action: " + in.Action,
		}
	}
}

func (h *Handler) tasksGet(_ *request) (int, any) {
	return http.StatusOK, map[string]any{
		"tasks":   []any{},
		"message": "Task scheduling is not available in this deployment.",
	}
}

func (h *Handler) taskKill(_ *request) (int, any) {
	return http.StatusOK, map[string]any{
		"success": false,
		"error":   "Task scheduling is not available in this deployment.",
	}
}
