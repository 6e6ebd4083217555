package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-gateway/internal/domain"
)

const (
	maxWindowEntries = 10
	maxOutputTokens  = 1024
	generateTimeout  = 45 * time.Second

	systemInstruction = "You are a helpful assistant in a chat application. " +
		"Answer the user's messages directly and concisely."

	credentialHelp = "No language model API key is configured. " +
		"Set OPENAI_API_KEY or OPENROUTER_API_KEY and try again."

	noResponseText = "no response"
)

// Generation is the outcome of one response attempt. Degraded marks text
// that explains a failure instead of answering; Reason names the failure
// class so callers and tests need not inspect the text.
type Generation struct {
	Text     string
	Degraded bool
	Reason   string
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// generate produces the assistant reply for text given the log entries that
// preceded it. It never returns an error: every failure path yields a
// degraded Generation whose text is shown as the assistant's reply.
func (s *ChatService) generate(ctx context.Context, log []domain.LogEntry, text string) Generation {
	provider := s.selectProvider(ctx)
	if provider == nil {
		return Generation{Text: credentialHelp, Degraded: true, Reason: "no_credentials"}
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	answer, err := provider.Chat(ctx, s.model, buildWindow(log, text), maxOutputTokens)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok {
			return Generation{
				Text: fmt.Sprintf("The language model request failed with status %d. "+
					"Please verify your %s API credentials.", status, provider.Name()),
				Degraded: true,
				Reason:   "upstream_status",
			}
		}
		return Generation{
			Text:     fmt.Sprintf("The language model request failed: %v.", err),
			Degraded: true,
			Reason:   "transport",
		}
	}
	if answer == "" {
		return Generation{Text: noResponseText, Degraded: true, Reason: "empty_response"}
	}
	return Generation{Text: answer}
}

// selectProvider returns the first provider with a resolvable credential,
// preserving the configured preference order.
func (s *ChatService) selectProvider(ctx context.Context) LLMClient {
	for _, p := range s.providers {
		if _, err := p.APIKey(ctx); err == nil {
			return p
		}
	}
	return nil
}

// buildWindow assembles the bounded message sequence: the fixed system
// instruction, the most recent window of log entries, then the current user
// message.
func buildWindow(log []domain.LogEntry, text string) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: "system", Content: systemInstruction},
	}
	start := 0
	if len(log) > maxWindowEntries {
		start = len(log) - maxWindowEntries
	}
	for _, entry := range log[start:] {
		role := "user"
		if entry.Type == domain.EntryAI {
			role = "assistant"
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: entry.Content})
	}
	return append(messages, domain.ChatMessage{Role: "user", Content: text})
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
