package payment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

type fakeChargeReader struct {
	statuses map[string]string
}

func (f *fakeChargeReader) GetCharge(ctx context.Context, id string) (*Charge, error) {
	status, ok := f.statuses[id]
	if !ok {
		return nil, errors.New("charge not found")
	}
	return &Charge{ID: id, Status: status}, nil
}

type captureSink struct {
	texts []string
}

func (s *captureSink) Deliver(ctx context.Context, msg *model.OutboundMessage) error {
	s.texts = append(s.texts, msg.Text)
	return nil
}

func newReconcileEnv(t *testing.T, statuses map[string]string) (*Reconciler, store.Store, *captureSink) {
	t.Helper()
	log, err := logger.NewDevelopment()
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sink := &captureSink{}
	r := NewReconciler(s, &fakeChargeReader{statuses: statuses}, sink, nil,
		func(ctx context.Context) ([]string, error) { return []string{"t"}, nil },
		time.Minute, log)
	return r, s, sink
}

func seedPaymentFlow(t *testing.T, s store.Store, chargeID string) model.Transaction {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	conv := model.Conversation{ID: "conv-1", TenantID: "t", ChannelAddress: "+5511999990000", IsActive: true}
	if err := s.Create(ctx, "t", store.CollectionConversations, conv.ID, conv); err != nil {
		t.Fatalf("seeding conversation: %v", err)
	}
	res := model.Reservation{ID: "res-1", TenantID: "t", Status: model.ReservationPending, CreatedAt: now}
	if err := s.Create(ctx, "t", store.CollectionReservations, res.ID, res); err != nil {
		t.Fatalf("seeding reservation: %v", err)
	}
	tx := model.Transaction{
		ID:               "tx-1",
		TenantID:         "t",
		ReservationID:    res.ID,
		ConversationID:   conv.ID,
		Amount:           1350,
		Currency:         "BRL",
		Status:           model.TransactionPending,
		ProviderChargeID: chargeID,
		CreatedAt:        now,
	}
	if err := s.Create(ctx, "t", store.CollectionTransactions, tx.ID, tx); err != nil {
		t.Fatalf("seeding transaction: %v", err)
	}
	return tx
}

func TestReconcilePaidConfirmsReservation(t *testing.T) {
	r, s, sink := newReconcileEnv(t, map[string]string{"ch-1": StatusPaid})
	seedPaymentFlow(t, s, "ch-1")
	ctx := context.Background()

	if err := r.ReconcileTenant(ctx, "t"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var tx model.Transaction
	if err := s.Get(ctx, "t", store.CollectionTransactions, "tx-1", &tx); err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.Status != model.TransactionPaid {
		t.Fatalf("transaction status = %s, want paid", tx.Status)
	}

	var res model.Reservation
	if err := s.Get(ctx, "t", store.CollectionReservations, "res-1", &res); err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if res.Status != model.ReservationConfirmed {
		t.Fatalf("reservation status = %s, want confirmed", res.Status)
	}

	if len(sink.texts) != 1 {
		t.Fatalf("notifications = %d, want 1", len(sink.texts))
	}
}

func TestReconcileExpiredCancels(t *testing.T) {
	r, s, _ := newReconcileEnv(t, map[string]string{"ch-1": StatusExpired})
	seedPaymentFlow(t, s, "ch-1")
	ctx := context.Background()

	if err := r.ReconcileTenant(ctx, "t"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var tx model.Transaction
	s.Get(ctx, "t", store.CollectionTransactions, "tx-1", &tx)
	if tx.Status != model.TransactionCancelled {
		t.Fatalf("transaction status = %s, want cancelled", tx.Status)
	}

	// The reservation stays pending; only a payment confirms it.
	var res model.Reservation
	s.Get(ctx, "t", store.CollectionReservations, "res-1", &res)
	if res.Status != model.ReservationPending {
		t.Fatalf("reservation status = %s, want pending", res.Status)
	}
}

func TestReconcileUnknownStatusKeepsPending(t *testing.T) {
	r, s, sink := newReconcileEnv(t, map[string]string{"ch-1": "CHARGEBACK"})
	seedPaymentFlow(t, s, "ch-1")
	ctx := context.Background()

	if err := r.ReconcileTenant(ctx, "t"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var tx model.Transaction
	s.Get(ctx, "t", store.CollectionTransactions, "tx-1", &tx)
	if tx.Status != model.TransactionPending {
		t.Fatalf("transaction status = %s, want pending", tx.Status)
	}
	if len(sink.texts) != 0 {
		t.Fatalf("no notification expected, got %v", sink.texts)
	}
}

func TestReconcileProviderErrorRetriesLater(t *testing.T) {
	r, s, _ := newReconcileEnv(t, map[string]string{})
	seedPaymentFlow(t, s, "ch-missing")
	ctx := context.Background()

	if err := r.ReconcileTenant(ctx, "t"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var tx model.Transaction
	s.Get(ctx, "t", store.CollectionTransactions, "tx-1", &tx)
	if tx.Status != model.TransactionPending {
		t.Fatalf("transaction status = %s, want pending", tx.Status)
	}
}
