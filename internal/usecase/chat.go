package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/store"
)

const defaultModel = "gpt-4o-mini"

// LLMClient is one chat-completion provider in preference order.
type LLMClient interface {
	Name() string
	APIKey(ctx context.Context) (string, error)
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, maxTokens int) (string, error)
}

// ChatService owns all gateway operations over the injected in-memory
// stores. One instance serves the whole process; everything it holds is
// destroyed on restart.
type ChatService struct {
	contexts      *store.Contexts
	sessions      *store.Sessions
	notifications *store.Notifications
	settings      *store.Settings
	providers     []LLMClient

	model     string
	runtimeID string
	started   time.Time

	now   func() time.Time
	newID func() string
}

// NewChatService validates and wires the service dependencies. providers may
// be empty, in which case every generation degrades to the configuration
// help text.
func NewChatService(
	contexts *store.Contexts,
	sessions *store.Sessions,
	notifications *store.Notifications,
	settings *store.Settings,
	providers []LLMClient,
	model string,
) (*ChatService, error) {
	if contexts == nil {
		return nil, errors.New("usecase: contexts store must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: sessions store must not be nil")
	}
	if notifications == nil {
		return nil, errors.New("usecase: notifications store must not be nil")
	}
	if settings == nil {
		return nil, errors.New("usecase: settings store must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	return &ChatService{
		contexts:      contexts,
		sessions:      sessions,
		notifications: notifications,
		settings:      settings,
		providers:     providers,
		model:         model,
		runtimeID:     uuid.NewString(),
		started:       time.Now(),
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// RuntimeID identifies this process instance; it changes on every restart.
func (s *ChatService) RuntimeID() string {
	return s.runtimeID
}

// CSRFToken returns the token for the session key, issuing one on first use.
func (s *ChatService) CSRFToken(sessionKey string) string {
	return s.sessions.IssueOrGet(sessionKey)
}

// ValidateCSRF reports whether token was issued for the session key.
func (s *ChatService) ValidateCSRF(sessionKey, token string) bool {
	return s.sessions.Validate(sessionKey, token)
}

// SettingsGet returns the current settings object.
func (s *ChatService) SettingsGet() map[string]any {
	return s.settings.Get()
}

// SettingsSet merges values into the settings object. Nothing is persisted.
func (s *ChatService) SettingsSet(values map[string]any) {
	s.settings.Set(values)
}

// Notify appends to the process-wide notification feed.
func (s *ChatService) Notify(ntype, title, message string) domain.Notification {
	return s.notifications.Add(ntype, title, message)
}

// PollInput selects what the poll response contains.
type PollInput struct {
	ContextID         string
	LogFrom           int
	NotificationsFrom int
}

// PollOutput is the incremental state snapshot for polling clients.
type PollOutput struct {
	ContextID     string
	LogGUID       string
	Logs          []domain.LogEntry
	Paused        bool
	Contexts      []domain.ContextSummary
	Notifications []domain.Notification
	Timestamp     time.Time
}

// Poll returns log entries and notifications past the client's cursors plus
// the full context listing. An unknown or absent context id yields empty
// logs rather than an error so pollers keep working across removals.
func (s *ChatService) Poll(in PollInput) PollOutput {
	out := PollOutput{
		ContextID:     in.ContextID,
		Logs:          []domain.LogEntry{},
		Contexts:      s.contexts.Summaries(),
		Notifications: s.notifications.Since(in.NotificationsFrom),
		Timestamp:     s.now(),
	}
	if in.ContextID != "" {
		if logs, guid, ok := s.contexts.LogsSince(in.ContextID, in.LogFrom); ok {
			out.Logs = logs
			out.LogGUID = guid
			if c, exists := s.contexts.Get(in.ContextID); exists {
				out.Paused = c.Paused
			}
		}
	}
	return out
}

// MessageInput is one user message aimed at a context.
type MessageInput struct {
	Text      string
	ContextID string
	MessageID string
}

// MessageOutput reports the stored turn and the assistant reply.
type MessageOutput struct {
	ContextID  string
	MessageID  string
	Response   string
	Generation Generation
}

// Message appends the user message to the context (creating it when absent),
// generates the assistant reply, and appends that too. The reply is always
// produced; upstream failures surface as degraded reply text, never as an
// error on this path.
func (s *ChatService) Message(ctx context.Context, in MessageInput) (MessageOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return MessageOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	conv := s.contexts.GetOrCreate(in.ContextID)

	// Window is built from the log as it stood before this turn.
	window := conv.Log

	if _, err := s.contexts.Append(conv.ID, domain.EntryUser, "User message", text); err != nil {
		return MessageOutput{}, newError(ErrorInternal, "append_user_entry", err)
	}

	gen := s.generate(ctx, window, text)

	if _, err := s.contexts.Append(conv.ID, domain.EntryAI, s.model, gen.Text); err != nil {
		return MessageOutput{}, newError(ErrorInternal, "append_ai_entry", err)
	}

	messageID := strings.TrimSpace(in.MessageID)
	if messageID == "" {
		messageID = s.newID()
	}
	return MessageOutput{
		ContextID:  conv.ID,
		MessageID:  messageID,
		Response:   gen.Text,
		Generation: gen,
	}, nil
}

// ChatCreate registers a context (reusing id when it already exists) and
// applies the optional display name.
func (s *ChatService) ChatCreate(id, name string) domain.ContextSummary {
	conv := s.contexts.GetOrCreate(id)
	if name = strings.TrimSpace(name); name != "" {
		s.contexts.SetName(conv.ID, name)
		conv.Name = name
	}
	return conv.Summary()
}

// ChatLoad returns the full context or a NOT_FOUND error.
func (s *ChatService) ChatLoad(id string) (domain.Context, error) {
	conv, ok := s.contexts.Get(id)
	if !ok {
		return domain.Context{}, newError(ErrorNotFound, "context_not_found", nil)
	}
	return conv, nil
}

// ChatReset clears the context's log and rotates its log guid. Resetting an
// unknown context is a no-op.
func (s *ChatService) ChatReset(id string) {
	s.contexts.Reset(id)
}

// ChatRemove deletes the context. Removing an unknown context is a no-op.
func (s *ChatService) ChatRemove(id string) {
	s.contexts.Remove(id)
}

// ExportOutput is the exported snapshot of one context.
type ExportOutput struct {
	ContextID  string
	Name       string
	Logs       []domain.LogEntry
	ExportedAt time.Time
}

// ChatExport returns the context's current log for download, or NOT_FOUND.
func (s *ChatService) ChatExport(id string) (ExportOutput, error) {
	conv, ok := s.contexts.Get(id)
	if !ok {
		return ExportOutput{}, newError(ErrorNotFound, "context_not_found", nil)
	}
	return ExportOutput{
		ContextID:  conv.ID,
		Name:       conv.Name,
		Logs:       conv.Log,
		ExportedAt: s.now(),
	}, nil
}

// Pause sets the execution-control flag, reporting whether the context
// exists.
func (s *ChatService) Pause(id string, paused bool) bool {
	return s.contexts.SetPaused(id, paused)
}

// MemoryStats is the dashboard snapshot of the in-memory stores.
type MemoryStats struct {
	Contexts      int
	Sessions      int
	Notifications int
	RuntimeID     string
	UptimeSeconds int
}

// Stats returns current store sizes for the memory dashboard.
func (s *ChatService) Stats() MemoryStats {
	return MemoryStats{
		Contexts:      s.contexts.Count(),
		Sessions:      s.sessions.Count(),
		Notifications: s.notifications.Len(),
		RuntimeID:     s.runtimeID,
		UptimeSeconds: int(s.now().Sub(s.started) / time.Second),
	}
}

// ClearNotifications empties the notification feed.
func (s *ChatService) ClearNotifications() {
	s.notifications.Clear()
}
