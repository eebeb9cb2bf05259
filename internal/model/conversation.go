package model

import (
	"time"
)

// Conversation represents one ongoing exchange with a client over a channel.
// At most one active conversation exists per (tenant, channel address).
type Conversation struct {
	ID             string              `json:"id"`
	TenantID       string              `json:"tenant_id"`
	ClientID       string              `json:"client_id"`
	ChannelAddress string              `json:"channel_address"`
	IsActive       bool                `json:"is_active"`
	LastMessageAt  time.Time           `json:"last_message_at"`
	Context        ConversationContext `json:"context"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// ConversationContext is the structured subset of conversation state carried
// across turns. Updates are partial merges, never full overwrites.
type ConversationContext struct {
	CurrentSearchFilters  map[string]any      `json:"current_search_filters,omitempty"`
	InterestedPropertyIDs []string            `json:"interested_property_ids,omitempty"`
	PendingReservation    *PendingReservation `json:"pending_reservation,omitempty"`
}

// PendingReservation points at a reservation created during the conversation
// that has not been paid yet.
type PendingReservation struct {
	ReservationID string  `json:"reservation_id"`
	PropertyID    string  `json:"property_id"`
	CheckIn       string  `json:"check_in"`
	CheckOut      string  `json:"check_out"`
	TotalAmount   float64 `json:"total_amount"`
}

// ConversationWithMessages is the read model returned by the fetch endpoint.
type ConversationWithMessages struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
