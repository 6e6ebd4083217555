package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/store"
)

type mockLLM struct {
	name     string
	keyErr   error
	answer   string
	chatErr  error
	gotModel string
	gotMsgs  []domain.ChatMessage
	calls    int
}

func (m *mockLLM) Name() string { return m.name }

func (m *mockLLM) APIKey(_ context.Context) (string, error) {
	if m.keyErr != nil {
		return "", m.keyErr
	}
	return "sk-test", nil
}

func (m *mockLLM) Chat(_ context.Context, model string, messages []domain.ChatMessage, _ int) (string, error) {
	m.calls++
	m.gotModel = model
	m.gotMsgs = messages
	return m.answer, m.chatErr
}

type statusError struct{ status int }

func (e *statusError) Error() string       { return fmt.Sprintf("status %d", e.status) }
func (e *statusError) HTTPStatusCode() int { return e.status }

func newTestService(t *testing.T, providers ...LLMClient) *ChatService {
	t.Helper()
	s, err := NewChatService(
		store.NewContexts(),
		store.NewSessions(),
		store.NewNotifications(),
		store.NewSettings(map[string]any{"model": "gpt-4o-mini"}),
		providers,
		"gpt-4o-mini",
	)
	require.NoError(t, err)
	return s
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	_, err := NewChatService(nil, store.NewSessions(), store.NewNotifications(), store.NewSettings(nil), nil, "")
	require.Error(t, err)
	_, err = NewChatService(store.NewContexts(), nil, store.NewNotifications(), store.NewSettings(nil), nil, "")
	require.Error(t, err)
}

func TestMessage_CreatesContextAndAppendsBothEntries(t *testing.T) {
	llm := &mockLLM{name: "openai", answer: "Hi there!"}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "Hello"})
	require.NoError(t, err)
	require.NotEmpty(t, out.ContextID)
	require.NotEmpty(t, out.MessageID)
	require.Equal(t, "Hi there!", out.Response)
	require.False(t, out.Generation.Degraded)

	conv, err := s.ChatLoad(out.ContextID)
	require.NoError(t, err)
	require.Len(t, conv.Log, 2)
	require.Equal(t, domain.EntryUser, conv.Log[0].Type)
	require.Equal(t, "Hello", conv.Log[0].Content)
	require.Equal(t, domain.EntryAI, conv.Log[1].Type)
	require.Equal(t, out.Response, conv.Log[1].Content)
}

func TestMessage_ReusesContextAndEchoesMessageID(t *testing.T) {
	llm := &mockLLM{name: "openai", answer: "ok"}
	s := newTestService(t, llm)

	first, err := s.Message(context.Background(), MessageInput{Text: "one"})
	require.NoError(t, err)

	second, err := s.Message(context.Background(), MessageInput{
		Text:      "two",
		ContextID: first.ContextID,
		MessageID: "msg-42",
	})
	require.NoError(t, err)
	require.Equal(t, first.ContextID, second.ContextID)
	require.Equal(t, "msg-42", second.MessageID)

	conv, err := s.ChatLoad(first.ContextID)
	require.NoError(t, err)
	require.Len(t, conv.Log, 4)
}

func TestMessage_EmptyTextRejected(t *testing.T) {
	s := newTestService(t, &mockLLM{name: "openai", answer: "ok"})

	_, err := s.Message(context.Background(), MessageInput{Text: "   "})
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, ErrorInvalidInput, ue.Code)
}

func TestMessage_NoCredentialsDegradesToHelpText(t *testing.T) {
	llm := &mockLLM{name: "openai", keyErr: errors.New("no key")}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "Hello"})
	require.NoError(t, err)
	require.True(t, out.Generation.Degraded)
	require.Equal(t, "no_credentials", out.Generation.Reason)
	require.Contains(t, out.Response, "OPENAI_API_KEY")
	require.Zero(t, llm.calls)

	// The degraded text is still stored as the AI entry.
	conv, err := s.ChatLoad(out.ContextID)
	require.NoError(t, err)
	require.Equal(t, out.Response, conv.Log[1].Content)
}

func TestMessage_FallsBackToSecondaryProvider(t *testing.T) {
	primary := &mockLLM{name: "openai", keyErr: errors.New("no key")}
	secondary := &mockLLM{name: "openrouter", answer: "via fallback"}
	s := newTestService(t, primary, secondary)

	out, err := s.Message(context.Background(), MessageInput{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "via fallback", out.Response)
	require.Zero(t, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestMessage_UpstreamStatusBecomesDegradedText(t *testing.T) {
	llm := &mockLLM{name: "openai", chatErr: &statusError{status: 503}}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "Hello"})
	require.NoError(t, err)
	require.True(t, out.Generation.Degraded)
	require.Equal(t, "upstream_status", out.Generation.Reason)
	require.Contains(t, out.Response, "503")
	require.Contains(t, out.Response, "openai")
}

func TestMessage_TransportFailureBecomesDegradedText(t *testing.T) {
	llm := &mockLLM{name: "openai", chatErr: errors.New("connection refused")}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "Hello"})
	require.NoError(t, err)
	require.True(t, out.Generation.Degraded)
	require.Equal(t, "transport", out.Generation.Reason)
	require.Contains(t, out.Response, "connection refused")
}

func TestMessage_EmptyCompletionBecomesPlaceholder(t *testing.T) {
	llm := &mockLLM{name: "openai", answer: ""}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "no response", out.Response)
	require.Equal(t, "empty_response", out.Generation.Reason)
}

func TestChatCreate_UniqueIDsAndName(t *testing.T) {
	s := newTestService(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		sum := s.ChatCreate("", "")
		require.False(t, seen[sum.ID])
		seen[sum.ID] = true
	}

	named := s.ChatCreate("", "Project X")
	require.Equal(t, "Project X", named.Name)
}

func TestChatExport_RoundTrip(t *testing.T) {
	llm := &mockLLM{name: "openai", answer: "reply"}
	s := newTestService(t, llm)

	sum := s.ChatCreate("", "X")
	_, err := s.Message(context.Background(), MessageInput{Text: "hello", ContextID: sum.ID})
	require.NoError(t, err)

	export, err := s.ChatExport(sum.ID)
	require.NoError(t, err)
	require.Equal(t, "X", export.Name)
	require.Len(t, export.Logs, 2)

	conv, err := s.ChatLoad(sum.ID)
	require.NoError(t, err)
	require.Equal(t, conv.Log, export.Logs)

	s.ChatReset(sum.ID)
	export, err = s.ChatExport(sum.ID)
	require.NoError(t, err)
	require.Empty(t, export.Logs)
}

func TestChatLoad_RemovedOrUnknownContext(t *testing.T) {
	s := newTestService(t)

	_, err := s.ChatLoad("never-created")
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, ErrorNotFound, ue.Code)

	sum := s.ChatCreate("", "")
	s.ChatRemove(sum.ID)
	_, err = s.ChatLoad(sum.ID)
	require.ErrorAs(t, err, &ue)
	require.Equal(t, ErrorNotFound, ue.Code)
}

func TestChatReset_RotatesLogGUID(t *testing.T) {
	llm := &mockLLM{name: "openai", answer: "reply"}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "hello"})
	require.NoError(t, err)

	before, err := s.ChatLoad(out.ContextID)
	require.NoError(t, err)

	s.ChatReset(out.ContextID)

	after, err := s.ChatLoad(out.ContextID)
	require.NoError(t, err)
	require.Empty(t, after.Log)
	require.NotEqual(t, before.LogGUID, after.LogGUID)
}

func TestCSRFToken_IdempotentPerSession(t *testing.T) {
	s := newTestService(t)

	a := s.CSRFToken("sess-a")
	require.Equal(t, a, s.CSRFToken("sess-a"))
	require.NotEqual(t, a, s.CSRFToken("sess-b"))
	require.True(t, s.ValidateCSRF("sess-a", a))
	require.False(t, s.ValidateCSRF("sess-b", a))
}

func TestPoll_ReturnsIncrementalState(t *testing.T) {
	llm := &mockLLM{name: "openai", answer: "reply"}
	s := newTestService(t, llm)

	out, err := s.Message(context.Background(), MessageInput{Text: "hello"})
	require.NoError(t, err)
	s.Notify("info", "note", "something happened")
	require.True(t, s.Pause(out.ContextID, true))

	poll := s.Poll(PollInput{ContextID: out.ContextID, LogFrom: 1})
	require.Len(t, poll.Logs, 1)
	require.Equal(t, domain.EntryAI, poll.Logs[0].Type)
	require.NotEmpty(t, poll.LogGUID)
	require.True(t, poll.Paused)
	require.Len(t, poll.Contexts, 1)
	require.Len(t, poll.Notifications, 1)

	// Unknown context still answers with the global state.
	poll = s.Poll(PollInput{ContextID: "gone"})
	require.Empty(t, poll.Logs)
	require.False(t, poll.Paused)
	require.Len(t, poll.Contexts, 1)
}

func TestStats_CountsStores(t *testing.T) {
	s := newTestService(t)
	s.ChatCreate("", "")
	s.ChatCreate("", "")
	s.CSRFToken("sess-a")
	s.Notify("info", "a", "b")

	stats := s.Stats()
	require.Equal(t, 2, stats.Contexts)
	require.Equal(t, 1, stats.Sessions)
	require.Equal(t, 1, stats.Notifications)
	require.Equal(t, s.RuntimeID(), stats.RuntimeID)

	s.ClearNotifications()
	require.Empty(t, s.Poll(PollInput{}).Notifications)
}
