// Package planner turns one inbound message plus conversational context into
// a draft reply and a set of typed function-call requests.
package planner

import (
	"context"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

// ChatMessage is one role-tagged transcript entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes one dispatchable function for the planning
// service, JSON-Schema style.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// PlanRequest is the bounded planning input assembled for one turn.
type PlanRequest struct {
	// Message is the new inbound text, not yet part of Transcript.
	Message string

	// Transcript is the most recent window of prior turns, oldest first.
	Transcript []ChatMessage

	// Context is the structured conversation context, passed verbatim.
	Context model.ConversationContext

	// ClientName personalizes the system instructions when known.
	ClientName string

	// Tools is the closed registry of dispatchable functions.
	Tools []ToolDefinition
}

// Plan is the planner's output: a natural-language draft reply plus zero or
// more function-call requests. Calls with unknown names survive to dispatch,
// where they are recorded and answered as no-ops.
type Plan struct {
	Reply string
	Calls []model.FunctionCall
}

// Planner is the single external planning call. Implementations must be
// treated as unreliable; callers degrade to a canned reply on error.
type Planner interface {
	Plan(ctx context.Context, req *PlanRequest) (*Plan, error)
}
