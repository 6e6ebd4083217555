package store

import "sync"

// Settings holds the process-local settings object served by the settings
// endpoints. Values are never persisted; a restart returns to defaults.
type Settings struct {
	mu     sync.Mutex
	values map[string]any
}

// NewSettings creates a settings store seeded with the given defaults.
func NewSettings(defaults map[string]any) *Settings {
	values := make(map[string]any, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return &Settings{values: values}
}

// Get returns a copy of the current settings object.
func (s *Settings) Get() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Set merges the given keys into the settings object.
func (s *Settings) Set(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}
