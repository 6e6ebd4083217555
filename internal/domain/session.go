package domain

import "time"

// Session holds the anti-forgery credential issued for one session key.
// Sessions never expire within the process lifetime.
type Session struct {
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
	Created   time.Time `json:"created"`
}

// Notification is one entry in the process-wide notification feed.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
