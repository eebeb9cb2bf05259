package model

import (
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAgent  Sender = "agent"
)

// Message is an immutable turn record. Messages are append-only and ordered
// by timestamp.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	TenantID       string    `json:"tenant_id"`
	From           Sender    `json:"from"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	IsRead         bool      `json:"is_read"`
}

// OutboundMessage is a reply (or notification) handed to the delivery sink.
// Delivery is fire-and-forget: failures are logged, never surfaced to the turn.
type OutboundMessage struct {
	TenantID       string   `json:"tenant_id"`
	ChannelAddress string   `json:"channel_address"`
	Text           string   `json:"text"`
	MediaURLs      []string `json:"media_urls,omitempty"`
}
