package model

import (
	"time"
)

// ProcessMessageRequest is the inbound "process a message" operation body.
// The tenant comes from the authenticated principal, never from the body.
type ProcessMessageRequest struct {
	ChannelAddress string `json:"channel_address"`
	SenderPhone    string `json:"sender_phone"`
	Text           string `json:"text"`
}

// ProcessMessageResponse is the outcome of one completed turn.
type ProcessMessageResponse struct {
	Reply           string           `json:"reply"`
	FunctionResults []FunctionResult `json:"function_results"`
	ConversationID  string           `json:"conversation_id"`
	ClientID        string           `json:"client_id"`
}

// EventType classifies pipeline events published to the event feed.
type EventType string

const (
	EventTurnCompleted EventType = "turn_completed"
	EventTurnFailed    EventType = "turn_failed"
	EventRateLimited   EventType = "rate_limited"
	EventPaymentUpdate EventType = "payment_update"
)

// PipelineEvent is a fire-and-forget observability event for one turn.
type PipelineEvent struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Type           EventType `json:"type"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
