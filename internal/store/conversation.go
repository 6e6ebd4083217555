package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
)

const defaultContextName = "New Chat"

// ErrContextNotFound is returned by operations that require an existing
// context. Callers must create the context first.
var ErrContextNotFound = fmt.Errorf("store: context not found")

// Contexts is the in-memory registry of conversation contexts. All state is
// process-local and destroyed on restart. Methods return copies so callers
// never hold references into the guarded maps.
type Contexts struct {
	mu    sync.Mutex
	byID  map[string]*domain.Context
	order []string

	now   func() time.Time
	newID func() string
}

// NewContexts creates an empty registry.
func NewContexts() *Contexts {
	return &Contexts{
		byID:  make(map[string]*domain.Context),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// GetOrCreate returns the context with the given id when it exists.
// Otherwise a new context is created and registered under a synthesized id;
// a caller-supplied unknown id is never reused.
func (s *Contexts) GetOrCreate(id string) domain.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if c, ok := s.byID[id]; ok {
			return copyContext(c)
		}
	}
	id = s.newID()
	c := &domain.Context{
		ID:        id,
		Name:      defaultContextName,
		CreatedAt: s.now(),
		Log:       []domain.LogEntry{},
		LogGUID:   s.newID(),
	}
	s.byID[id] = c
	s.order = append(s.order, id)
	return copyContext(c)
}

// Get returns a copy of the context, reporting whether it exists.
func (s *Contexts) Get(id string) (domain.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return domain.Context{}, false
	}
	return copyContext(c), true
}

// Remove deletes the context. Unknown ids are a no-op.
func (s *Contexts) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Reset empties the context's log and issues a new log guid so polling
// clients detect the discontinuity. Unknown ids are a no-op.
func (s *Contexts) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return
	}
	c.Log = []domain.LogEntry{}
	c.LogGUID = s.newID()
}

// Append adds a log entry to the context and returns the stored entry with
// its id, sequence number and timestamp assigned. The sequence number is
// always the log length at append time.
func (s *Contexts) Append(id string, typ domain.EntryType, heading, content string) (domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return domain.LogEntry{}, ErrContextNotFound
	}
	entry := domain.LogEntry{
		ID:        s.newID(),
		No:        len(c.Log),
		Type:      typ,
		Heading:   heading,
		Content:   content,
		Timestamp: s.now(),
	}
	c.Log = append(c.Log, entry)
	return entry, nil
}

// SetName updates the context's display label. Unknown ids are a no-op.
func (s *Contexts) SetName(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok && name != "" {
		c.Name = name
	}
}

// SetPaused updates the execution-control flag, reporting whether the
// context exists.
func (s *Contexts) SetPaused(id string, paused bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return false
	}
	c.Paused = paused
	return true
}

// LogsSince returns the entries with sequence number >= from along with the
// current log guid. The guid lets pollers detect a reset between calls.
func (s *Contexts) LogsSince(id string, from int) ([]domain.LogEntry, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, "", false
	}
	if from < 0 {
		from = 0
	}
	if from > len(c.Log) {
		from = len(c.Log)
	}
	out := make([]domain.LogEntry, len(c.Log)-from)
	copy(out, c.Log[from:])
	return out, c.LogGUID, true
}

// Summaries lists all contexts in creation order.
func (s *Contexts) Summaries() []domain.ContextSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ContextSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Summary())
	}
	return out
}

// Count returns the number of registered contexts.
func (s *Contexts) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func copyContext(c *domain.Context) domain.Context {
	out := *c
	out.Log = make([]domain.LogEntry, len(c.Log))
	copy(out.Log, c.Log)
	return out
}
