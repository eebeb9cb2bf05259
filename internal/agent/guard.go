package agent

import (
	"sync"
	"time"

	"github.com/reserva-ai/commerce-platform/pkg/metrics"
)

// defaultGuardWindow is how long a dispatched call's fingerprint suppresses
// equivalent retries within the same conversation.
const defaultGuardWindow = 2 * time.Minute

// DuplicateGuard suppresses repeated equivalent function calls caused by
// planner loops or client double sends. Reserve is check-and-insert in one
// step so two concurrent turns cannot both pass for the same fingerprint.
type DuplicateGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewDuplicateGuard(window time.Duration) *DuplicateGuard {
	if window <= 0 {
		window = defaultGuardWindow
	}
	return &DuplicateGuard{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Reserve claims a (conversation, fingerprint) slot. Returns false when an
// unexpired reservation already exists, meaning the call must be suppressed.
func (g *DuplicateGuard) Reserve(conversationID, fingerprint string) bool {
	key := conversationID + ":" + fingerprint
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.seen[key]; ok && now.Sub(at) < g.window {
		return false
	}
	g.seen[key] = now
	return true
}

// Forget releases a reservation after the guarded call failed, so a genuine
// retry is not blocked by a failure.
func (g *DuplicateGuard) Forget(conversationID, fingerprint string) {
	g.mu.Lock()
	delete(g.seen, conversationID+":"+fingerprint)
	g.mu.Unlock()
}

// Cleanup drops expired reservations and returns how many were removed.
func (g *DuplicateGuard) Cleanup() int {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, key)
			removed++
		}
	}
	return removed
}

// RecordSuppressed counts a suppressed call for observability.
func RecordSuppressed(function string) {
	metrics.SuppressedCallsTotal.WithLabelValues(function).Inc()
}
