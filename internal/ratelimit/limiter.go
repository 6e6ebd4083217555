package ratelimit

import (
	"sync"
	"time"
)

// Class is the rate-limiting category applied to a request path.
type Class string

const (
	ClassDefault   Class = "default"
	ClassExpensive Class = "expensive"
	ClassPolling   Class = "polling"
)

// Limit configures one route class.
type Limit struct {
	Window      time.Duration
	MaxRequests int
}

// DefaultLimits returns the class thresholds used in production.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassDefault:   {Window: time.Minute, MaxRequests: 120},
		ClassExpensive: {Window: time.Minute, MaxRequests: 30},
		ClassPolling:   {Window: time.Minute, MaxRequests: 300},
	}
}

// Result is the outcome of a single rate check.
type Result struct {
	Limited           bool
	Remaining         int
	RetryAfterSeconds int
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per (client key, route class) in fixed windows.
// It never fails and never blocks; all state lives in one mutex-guarded map.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	limits       map[Class]Limit
	lastCleanup  time.Time
	cleanupEvery time.Duration
}

// NewLimiter creates a Limiter with the given per-class limits. Classes
// missing from limits fall back to the default class entry.
func NewLimiter(limits map[Class]Limit) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{
		windows:      make(map[string]*window),
		limits:       limits,
		cleanupEvery: time.Minute,
	}
}

func (l *Limiter) limitFor(class Class) Limit {
	if lim, ok := l.limits[class]; ok {
		return lim
	}
	return l.limits[ClassDefault]
}

// Check records one request for the composite key and reports whether it is
// over the class limit. A new window starts on the first request for a key or
// once the previous window has fully elapsed.
func (l *Limiter) Check(clientKey string, class Class, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup(now)

	lim := l.limitFor(class)
	key := clientKey + ":" + string(class)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > lim.Window {
		l.windows[key] = &window{start: now, count: 1}
		return Result{Remaining: lim.MaxRequests - 1}
	}

	w.count++
	if w.count > lim.MaxRequests {
		return Result{
			Limited:           true,
			RetryAfterSeconds: ceilSeconds(w.start.Add(lim.Window).Sub(now)),
		}
	}
	return Result{Remaining: lim.MaxRequests - w.count}
}

// maybeCleanup drops entries whose window is more than twice its length
// stale. Runs at most once per cleanupEvery; advisory memory bound only.
// Caller holds the mutex.
func (l *Limiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.cleanupEvery {
		return
	}
	l.lastCleanup = now
	for key, w := range l.windows {
		class := classFromKey(key)
		if now.Sub(w.start) > 2*l.limitFor(class).Window {
			delete(l.windows, key)
		}
	}
}

func classFromKey(key string) Class {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return Class(key[i+1:])
		}
	}
	return ClassDefault
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
