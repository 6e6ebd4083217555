package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
)

// defaultNotificationCap bounds the feed; the oldest entries are dropped
// first. Absolute indices handed to Since remain stable across drops.
const defaultNotificationCap = 500

// Notifications is the process-wide ordered notification feed.
type Notifications struct {
	mu      sync.Mutex
	items   []domain.Notification
	dropped int
	cap     int

	now   func() time.Time
	newID func() string
}

// NewNotifications creates an empty feed with the default capacity bound.
func NewNotifications() *Notifications {
	return &Notifications{
		cap:   defaultNotificationCap,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Add appends a notification and returns the stored entry.
func (s *Notifications) Add(ntype, title, message string) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := domain.Notification{
		ID:        s.newID(),
		Type:      ntype,
		Title:     title,
		Message:   message,
		Timestamp: s.now(),
	}
	s.items = append(s.items, n)
	if len(s.items) > s.cap {
		over := len(s.items) - s.cap
		s.items = append([]domain.Notification(nil), s.items[over:]...)
		s.dropped += over
	}
	return n
}

// Since returns the notifications at absolute index >= from, oldest first.
// Entries already dropped by the capacity bound are simply absent.
func (s *Notifications) Since(from int) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := from - s.dropped
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.items) {
		idx = len(s.items)
	}
	out := make([]domain.Notification, len(s.items)-idx)
	copy(out, s.items[idx:])
	return out
}

// Len returns the absolute count of notifications ever added.
func (s *Notifications) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped + len(s.items)
}

// Clear empties the feed. Absolute indexing continues from the prior count.
func (s *Notifications) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped += len(s.items)
	s.items = nil
}
