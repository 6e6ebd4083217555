package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassDefault:   {Window: time.Minute, MaxRequests: 5},
		ClassExpensive: {Window: time.Minute, MaxRequests: 30},
		ClassPolling:   {Window: time.Minute, MaxRequests: 10},
	}
}

func TestCheck_PermitsExactlyMaxRequestsPerWindow(t *testing.T) {
	l := NewLimiter(testLimits())
	now := time.Now()

	for i := 0; i < 5; i++ {
		res := l.Check("1.2.3.4", ClassDefault, now)
		require.False(t, res.Limited, "request %d should be permitted", i+1)
		require.Equal(t, 4-i, res.Remaining)
	}

	res := l.Check("1.2.3.4", ClassDefault, now)
	require.True(t, res.Limited)
	require.Positive(t, res.RetryAfterSeconds)
}

func TestCheck_ThirtyFirstExpensiveRequestIsLimited(t *testing.T) {
	l := NewLimiter(testLimits())
	now := time.Now()

	for i := 0; i < 30; i++ {
		require.False(t, l.Check("9.9.9.9", ClassExpensive, now).Limited)
	}
	res := l.Check("9.9.9.9", ClassExpensive, now)
	require.True(t, res.Limited)
	require.Positive(t, res.RetryAfterSeconds)
}

func TestCheck_NewWindowAfterExpiry(t *testing.T) {
	l := NewLimiter(testLimits())
	start := time.Now()

	for i := 0; i < 6; i++ {
		l.Check("1.2.3.4", ClassDefault, start)
	}
	require.True(t, l.Check("1.2.3.4", ClassDefault, start).Limited)

	// Exactly one window later the old window still counts.
	require.True(t, l.Check("1.2.3.4", ClassDefault, start.Add(time.Minute)).Limited)

	// Just past the window a fresh one starts.
	res := l.Check("1.2.3.4", ClassDefault, start.Add(time.Minute+time.Millisecond))
	require.False(t, res.Limited)
	require.Equal(t, 4, res.Remaining)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(testLimits())
	now := time.Now()

	for i := 0; i < 6; i++ {
		l.Check("1.1.1.1", ClassDefault, now)
	}
	require.True(t, l.Check("1.1.1.1", ClassDefault, now).Limited)
	require.False(t, l.Check("2.2.2.2", ClassDefault, now).Limited)
	// Same client, different class gets its own window.
	require.False(t, l.Check("1.1.1.1", ClassPolling, now).Limited)
}

func TestCheck_RetryAfterCountsDownToWindowEnd(t *testing.T) {
	l := NewLimiter(testLimits())
	start := time.Now()

	for i := 0; i < 5; i++ {
		l.Check("1.2.3.4", ClassDefault, start)
	}
	res := l.Check("1.2.3.4", ClassDefault, start.Add(30*time.Second))
	require.True(t, res.Limited)
	require.Equal(t, 30, res.RetryAfterSeconds)

	res = l.Check("1.2.3.4", ClassDefault, start.Add(59*time.Second+500*time.Millisecond))
	require.True(t, res.Limited)
	require.Equal(t, 1, res.RetryAfterSeconds)
}

func TestCheck_UnknownClassFallsBackToDefault(t *testing.T) {
	l := NewLimiter(testLimits())
	now := time.Now()
	res := l.Check("1.2.3.4", Class("bogus"), now)
	require.False(t, res.Limited)
	require.Equal(t, 4, res.Remaining)
}

func TestCleanup_DropsStaleWindows(t *testing.T) {
	l := NewLimiter(testLimits())
	start := time.Now()

	for i := 0; i < 20; i++ {
		l.Check(fmt.Sprintf("10.0.0.%d", i), ClassDefault, start)
	}
	require.Len(t, l.windows, 20)

	// Fresh key more than twice the window later triggers cleanup.
	l.Check("fresh", ClassDefault, start.Add(3*time.Minute))
	require.Len(t, l.windows, 1)
}

func TestCleanup_RunsAtMostOncePerInterval(t *testing.T) {
	l := NewLimiter(testLimits())
	start := time.Now()

	l.Check("a", ClassDefault, start)
	l.Check("b", ClassDefault, start.Add(70*time.Second))
	// "a" turns stale here, but cleanup ran 51s ago and is throttled.
	l.Check("c", ClassDefault, start.Add(121*time.Second))
	require.Len(t, l.windows, 3)
}
