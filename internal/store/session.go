package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
)

// DefaultSessionKey is used for clients that present no session cookie.
// All such clients share one session's token; see the design notes.
const DefaultSessionKey = "default"

// Sessions issues and validates per-session CSRF tokens. Tokens are created
// lazily and remain valid for the process lifetime; there is no TTL.
type Sessions struct {
	mu    sync.Mutex
	byKey map[string]*domain.Session

	now      func() time.Time
	newToken func() string
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{
		byKey:    make(map[string]*domain.Session),
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// IssueOrGet returns the CSRF token for sessionKey, creating the session
// with a fresh random token on first use. Idempotent per key.
func (s *Sessions) IssueOrGet(sessionKey string) string {
	if sessionKey == "" {
		sessionKey = DefaultSessionKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byKey[sessionKey]; ok {
		return sess.CSRFToken
	}
	sess := &domain.Session{
		SessionID: sessionKey,
		CSRFToken: s.newToken(),
		Created:   s.now(),
	}
	s.byKey[sessionKey] = sess
	return sess.CSRFToken
}

// Validate reports whether token matches the one issued for sessionKey.
// A session that was never issued a token validates nothing.
func (s *Sessions) Validate(sessionKey, token string) bool {
	if sessionKey == "" {
		sessionKey = DefaultSessionKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byKey[sessionKey]
	return ok && token != "" && sess.CSRFToken == token
}

// Count returns the number of issued sessions.
func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}
