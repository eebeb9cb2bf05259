package model

import (
	"fmt"
	"time"
)

// ValidationError marks malformed inbound arguments. Surfaced as 400, never
// retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// RateLimitError is returned when admission control rejects a turn. Surfaced
// as 429; the caller may retry after ResetAt.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// RetryAfter returns the wait duration derived from ResetAt, never negative.
func (e *RateLimitError) RetryAfter() time.Duration {
	d := time.Until(e.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// StorageError wraps a transient infrastructure failure from the document
// store. Surfaced as 500 when retries at the get-or-create layer fail.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PlannerError wraps a planning-service failure. Recovered locally with a
// canned reply; the turn still completes.
type PlannerError struct {
	Err error
}

func (e *PlannerError) Error() string {
	return fmt.Sprintf("planner: %v", e.Err)
}

func (e *PlannerError) Unwrap() error { return e.Err }

// IsolationError marks a function-call argument that resolved to another
// tenant's record. Handlers reject these, never silently ignore them.
type IsolationError struct {
	Collection string
	ID         string
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("isolation: %s/%s does not belong to tenant", e.Collection, e.ID)
}
