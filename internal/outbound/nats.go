package outbound

import (
	"context"

	"github.com/reserva-ai/commerce-platform/internal/model"
	natsclient "github.com/reserva-ai/commerce-platform/internal/nats"
)

// NATSSink publishes outbound messages to the agent JetStream stream, where
// channel delivery workers pick them up.
type NATSSink struct {
	streams *natsclient.StreamManager
}

func NewNATSSink(streams *natsclient.StreamManager) *NATSSink {
	return &NATSSink{streams: streams}
}

func (s *NATSSink) Deliver(ctx context.Context, msg *model.OutboundMessage) error {
	return s.streams.PublishOutbound(ctx, msg)
}

// NATSEventPublisher publishes pipeline events to the same stream.
type NATSEventPublisher struct {
	streams *natsclient.StreamManager
}

func NewNATSEventPublisher(streams *natsclient.StreamManager) *NATSEventPublisher {
	return &NATSEventPublisher{streams: streams}
}

func (p *NATSEventPublisher) PublishEvent(ctx context.Context, event *model.PipelineEvent) error {
	return p.streams.PublishEvent(ctx, event)
}
