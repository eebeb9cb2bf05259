package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/outbound"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
	"github.com/reserva-ai/commerce-platform/pkg/metrics"
)

// ChargeReader is the subset of the provider client the reconciler needs.
type ChargeReader interface {
	GetCharge(ctx context.Context, id string) (*Charge, error)
}

// Reconciler periodically converges pending ledger transactions with the
// provider's charge state. Failures are logged and retried on the next tick;
// a completed payment is never silently dropped.
type Reconciler struct {
	store    store.Store
	charges  ChargeReader
	sink     outbound.Sink
	events   outbound.EventPublisher
	tenants  func(ctx context.Context) ([]string, error)
	interval time.Duration
	logger   *logger.Logger
}

func NewReconciler(
	s store.Store,
	charges ChargeReader,
	sink outbound.Sink,
	events outbound.EventPublisher,
	tenants func(ctx context.Context) ([]string, error),
	interval time.Duration,
	log *logger.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Reconciler{
		store:    s,
		charges:  charges,
		sink:     sink,
		events:   events,
		tenants:  tenants,
		interval: interval,
		logger:   log,
	}
}

// Run polls until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcileAll(ctx); err != nil {
				r.logger.Warn("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) reconcileAll(ctx context.Context) error {
	tenantIDs, err := r.tenants(ctx)
	if err != nil {
		return fmt.Errorf("listing tenants: %w", err)
	}
	for _, tenantID := range tenantIDs {
		if err := r.ReconcileTenant(ctx, tenantID); err != nil {
			r.logger.Warn("tenant reconciliation failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// ReconcileTenant updates every pending transaction with a provider charge id
// for one tenant.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID string) error {
	var pending []model.Transaction
	err := store.QueryAll(ctx, r.store, tenantID, store.CollectionTransactions, func(tx model.Transaction) bool {
		return tx.Status == model.TransactionPending && tx.ProviderChargeID != ""
	}, &pending)
	if err != nil {
		return err
	}

	for _, tx := range pending {
		r.reconcileTransaction(ctx, tx)
	}
	return nil
}

func (r *Reconciler) reconcileTransaction(ctx context.Context, tx model.Transaction) {
	charge, err := r.charges.GetCharge(ctx, tx.ProviderChargeID)
	if err != nil {
		metrics.PaymentReconciliationsTotal.WithLabelValues("provider_error").Inc()
		r.logger.Warn("failed to fetch charge",
			zap.String("tenant_id", tx.TenantID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return
	}

	status, known := MapStatus(charge.Status)
	if !known {
		r.logger.Warn("unrecognized provider status, keeping transaction pending",
			zap.String("tenant_id", tx.TenantID),
			zap.String("transaction_id", tx.ID),
			zap.String("provider_status", charge.Status),
		)
		metrics.PaymentReconciliationsTotal.WithLabelValues("unknown_status").Inc()
		return
	}
	if status == tx.Status {
		metrics.PaymentReconciliationsTotal.WithLabelValues("unchanged").Inc()
		return
	}

	tx.Status = status
	tx.UpdatedAt = time.Now()
	if err := r.store.Update(ctx, tx.TenantID, store.CollectionTransactions, tx.ID, tx); err != nil {
		metrics.PaymentReconciliationsTotal.WithLabelValues("store_error").Inc()
		r.logger.Error("failed to update transaction",
			zap.String("tenant_id", tx.TenantID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return
	}
	metrics.PaymentReconciliationsTotal.WithLabelValues("updated").Inc()

	if status == model.TransactionPaid && tx.ReservationID != "" {
		r.confirmReservation(ctx, tx)
	}
	r.notifyClient(ctx, tx, status)

	if r.events != nil {
		_ = r.events.PublishEvent(ctx, &model.PipelineEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			TenantID:       tx.TenantID,
			ConversationID: tx.ConversationID,
			Type:           model.EventPaymentUpdate,
			Reason:         string(status),
			CreatedAt:      time.Now(),
		})
	}
}

func (r *Reconciler) confirmReservation(ctx context.Context, tx model.Transaction) {
	var res model.Reservation
	if err := r.store.Get(ctx, tx.TenantID, store.CollectionReservations, tx.ReservationID, &res); err != nil {
		r.logger.Warn("paid transaction references missing reservation",
			zap.String("tenant_id", tx.TenantID),
			zap.String("reservation_id", tx.ReservationID),
			zap.Error(err),
		)
		return
	}
	res.Status = model.ReservationConfirmed
	res.UpdatedAt = time.Now()
	if err := r.store.Update(ctx, tx.TenantID, store.CollectionReservations, res.ID, res); err != nil {
		r.logger.Error("failed to confirm reservation",
			zap.String("tenant_id", tx.TenantID),
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) notifyClient(ctx context.Context, tx model.Transaction, status model.TransactionStatus) {
	if tx.ConversationID == "" {
		return
	}
	var conv model.Conversation
	if err := r.store.Get(ctx, tx.TenantID, store.CollectionConversations, tx.ConversationID, &conv); err != nil {
		return
	}

	var text string
	switch status {
	case model.TransactionPaid:
		text = "Pagamento confirmado! Sua reserva está garantida. 🎉"
	case model.TransactionCancelled:
		text = "A cobrança expirou ou foi cancelada. Se ainda quiser reservar, posso gerar um novo Pix."
	case model.TransactionRefunded:
		text = "Seu pagamento foi estornado. Qualquer dúvida, estou à disposição."
	default:
		return
	}

	outbound.Dispatch(ctx, r.sink, &model.OutboundMessage{
		TenantID:       tx.TenantID,
		ChannelAddress: conv.ChannelAddress,
		Text:           text,
	}, r.logger)
}
