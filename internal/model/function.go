package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// FunctionCall is a domain action requested by the planner. Arguments arrive
// loosely typed and are validated at the dispatch boundary.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// FunctionResult is the outcome of one dispatched function call. Results are
// folded into the outbound reply and the conversation context but are not
// stored verbatim.
type FunctionResult struct {
	FunctionName string         `json:"function"`
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data,omitempty"`
	Message      string         `json:"message,omitempty"`
	Error        string         `json:"error,omitempty"`

	// AlreadyHandled marks a synthetic result produced when the duplicate
	// guard suppressed an equivalent call.
	AlreadyHandled bool `json:"already_handled,omitempty"`
}

// Fingerprint returns a stable hash of the call's name and normalized
// arguments. Two calls with the same fingerprint are considered equivalent by
// the duplicate guard and the idempotency store.
func (c FunctionCall) Fingerprint() string {
	// encoding/json sorts map keys, which normalizes argument order.
	raw, err := json.Marshal(c.Arguments)
	if err != nil {
		raw = []byte("{}")
	}
	sum := sha256.Sum256(append([]byte(c.Name+"\x00"), raw...))
	return hex.EncodeToString(sum[:])
}
