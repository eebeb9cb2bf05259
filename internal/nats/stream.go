package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

const (
	// StreamName is the name of the agent stream carrying outbound messages
	// and pipeline events.
	StreamName = "AGENT"

	// OutboundPrefix is the subject prefix for outbound deliveries.
	OutboundPrefix = "out"

	// EventPrefix is the subject prefix for pipeline events.
	EventPrefix = "evt"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the agent stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name: StreamName,
		Subjects: []string{
			fmt.Sprintf("%s.>", OutboundPrefix),
			fmt.Sprintf("%s.>", EventPrefix),
		},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Outbound messages and pipeline events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// OutboundSubject returns the subject for an outbound delivery.
func OutboundSubject(tenantID, channelAddress string) string {
	return fmt.Sprintf("%s.%s.%s", OutboundPrefix, tenantID, sanitizeToken(channelAddress))
}

// EventSubject returns the subject for a pipeline event.
func EventSubject(tenantID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", EventPrefix, tenantID, eventType)
}

// sanitizeToken makes an arbitrary identifier safe as a NATS subject token.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}

// PublishOutbound publishes an outbound message for delivery workers.
func (m *StreamManager) PublishOutbound(ctx context.Context, msg *model.OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	_, err = m.client.JetStream().Publish(ctx, OutboundSubject(msg.TenantID, msg.ChannelAddress), data)
	if err != nil {
		return fmt.Errorf("failed to publish outbound message: %w", err)
	}
	return nil
}

// PublishEvent publishes a pipeline event.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.PipelineEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = m.client.JetStream().Publish(ctx, EventSubject(event.TenantID, event.Type), data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
