// Package ratelimit implements admission control for the message pipeline:
// per-(tenant, identifier) request counting against a named window policy.
package ratelimit

import (
	"context"
	"time"
)

// Policy defines one channel class's window length and request budget.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Default policies. The inbound-message policy guards the whole pipeline;
// the search policy guards the read-heavy search endpoint class.
var (
	PolicyInboundMessage = Policy{Name: "inbound-message", Window: time.Minute, MaxRequests: 10}
	PolicySearch         = Policy{Name: "search", Window: time.Minute, MaxRequests: 30}
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks and increments the counter for a key atomically. A turn
// rejected here must stop before any side effect occurs.
type Limiter interface {
	Check(ctx context.Context, tenantID, identifier string, policy Policy) (Result, error)
}

func bucketKey(tenantID, identifier string, policy Policy) string {
	return "rl:" + policy.Name + ":" + tenantID + ":" + identifier
}
