// Package outbound delivers agent replies and notifications to the customer
// channel. Delivery is fire-and-forget from the pipeline's perspective:
// failures are logged and counted, never allowed to fail the turn.
package outbound

import (
	"context"

	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
	"github.com/reserva-ai/commerce-platform/pkg/metrics"
)

// Sink delivers one outbound message.
type Sink interface {
	Deliver(ctx context.Context, msg *model.OutboundMessage) error
}

// EventPublisher publishes pipeline events to the observability feed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.PipelineEvent) error
}

// Dispatch delivers through the sink, logging and counting the outcome. Safe
// to call from the hot path.
func Dispatch(ctx context.Context, sink Sink, msg *model.OutboundMessage, log *logger.Logger) {
	if sink == nil {
		return
	}
	if err := sink.Deliver(ctx, msg); err != nil {
		metrics.OutboundDeliveriesTotal.WithLabelValues("error").Inc()
		log.Warn("outbound delivery failed",
			zap.String("tenant_id", msg.TenantID),
			zap.String("channel_address", msg.ChannelAddress),
			zap.Error(err),
		)
		return
	}
	metrics.OutboundDeliveriesTotal.WithLabelValues("success").Inc()
}

// LogSink logs deliveries instead of sending them. Used in development and
// tests, and as the fallback when no broker is configured.
type LogSink struct {
	Logger *logger.Logger
}

func (s *LogSink) Deliver(ctx context.Context, msg *model.OutboundMessage) error {
	s.Logger.Info("outbound message",
		zap.String("tenant_id", msg.TenantID),
		zap.String("channel_address", msg.ChannelAddress),
		zap.Int("text_len", len(msg.Text)),
		zap.Int("media", len(msg.MediaURLs)),
	)
	return nil
}
