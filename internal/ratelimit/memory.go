package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a sliding-window in-process limiter. Each key keeps the
// counters of the current and previous window; the previous count is weighted
// by how much of it still overlaps the sliding window, so a sender cannot
// burst two full budgets by straddling a window boundary. It is the default
// backend for single-instance deployments; multi-instance deployments use
// the Redis limiter so all instances share counters.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	windowStart time.Time
	curr        int
	prev        int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Check reads and increments the weighted counter atomically for the key.
func (l *MemoryLimiter) Check(ctx context.Context, tenantID, identifier string, policy Policy) (Result, error) {
	key := bucketKey(tenantID, identifier, policy)
	now := l.now()
	windowStart := now.Truncate(policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{windowStart: windowStart}
		l.buckets[key] = b
	}
	switch {
	case b.windowStart.Equal(windowStart):
		// Still in the same window.
	case b.windowStart.Equal(windowStart.Add(-policy.Window)):
		// Rolled into the adjacent window; the old count keeps weighing.
		b.prev, b.curr = b.curr, 0
		b.windowStart = windowStart
	default:
		// Idle for over a full window, nothing left to weigh.
		b.prev, b.curr = 0, 0
		b.windowStart = windowStart
	}

	elapsed := now.Sub(windowStart)
	prevWeight := float64(policy.Window-elapsed) / float64(policy.Window)
	weighted := float64(b.curr) + float64(b.prev)*prevWeight

	resetAt := windowStart.Add(policy.Window)
	if weighted >= float64(policy.MaxRequests) {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	b.curr++
	remaining := policy.MaxRequests - int(weighted) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Cleanup drops buckets whose window expired before maxAge ago. Run it
// periodically to keep the map from growing with one-off senders.
func (l *MemoryLimiter) Cleanup(maxAge time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) > maxAge {
			delete(l.buckets, key)
		}
	}
}
