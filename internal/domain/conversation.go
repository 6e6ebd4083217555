package domain

import "time"

// EntryType distinguishes who produced a log entry.
type EntryType string

const (
	EntryUser EntryType = "user"
	EntryAI   EntryType = "ai"
)

// LogEntry is a single message within a conversation context. No is the
// zero-based position in the log at append time; entries are never reordered
// or removed individually, only wholesale-cleared on reset.
type LogEntry struct {
	ID        string    `json:"id"`
	No        int       `json:"no"`
	Type      EntryType `json:"type"`
	Heading   string    `json:"heading"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is one conversation thread and its ordered message log. LogGUID
// changes whenever the log is replaced wholesale so polling clients can
// detect the discontinuity.
type Context struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	Log       []LogEntry `json:"log"`
	LogGUID   string     `json:"log_guid"`
	Paused    bool       `json:"paused"`
}

// ContextSummary is the listing shape for a context, without its log.
type ContextSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Paused    bool      `json:"paused"`
}

// Summary returns the listing shape for c.
func (c *Context) Summary() ContextSummary {
	return ContextSummary{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		Paused:    c.Paused,
	}
}
