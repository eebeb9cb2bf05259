package functions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/payment"
	"github.com/reserva-ai/commerce-platform/internal/store"
)

// ChargeCreator is the subset of the payment provider client this handler
// needs; tests substitute a fake.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req *payment.ChargeRequest) (*payment.Charge, error)
}

// CreatePaymentRequest generates a Pix charge for a pending reservation and
// records the ledger transaction. Financially significant: idempotent under
// retry.
type CreatePaymentRequest struct {
	store   store.Store
	charges ChargeCreator
}

func NewCreatePaymentRequest(s store.Store, charges ChargeCreator) *CreatePaymentRequest {
	return &CreatePaymentRequest{store: s, charges: charges}
}

func (h *CreatePaymentRequest) Name() string { return "create_payment_request" }
func (h *CreatePaymentRequest) Description() string {
	return "Gera uma cobrança Pix (QR code) para uma reserva pendente"
}
func (h *CreatePaymentRequest) Idempotent() bool { return true }

func (h *CreatePaymentRequest) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"reservation_id": {Type: "string", Description: "ID da reserva"},
		},
		Required: []string{"reservation_id"},
	}
}

func (h *CreatePaymentRequest) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	if h.charges == nil {
		return nil, "", fmt.Errorf("pagamentos não estão configurados para este ambiente")
	}

	reservationID, err := stringArg(args, "reservation_id")
	if err != nil {
		return nil, "", err
	}

	var res model.Reservation
	err = h.store.Get(ctx, scope.TenantID, store.CollectionReservations, reservationID, &res)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("reserva não encontrada: %s", reservationID)
	}
	if err != nil {
		return nil, "", err
	}
	if err := isolationCheck(store.CollectionReservations, reservationID, res.TenantID, scope.TenantID); err != nil {
		return nil, "", err
	}
	if res.Status != model.ReservationPending {
		return nil, "", fmt.Errorf("a reserva %s não está pendente de pagamento", reservationID)
	}

	charge, err := h.charges.CreateCharge(ctx, &payment.ChargeRequest{
		Amount:        res.TotalAmount,
		Currency:      res.Currency,
		Description:   fmt.Sprintf("Reserva %s (%s a %s)", res.ID, res.CheckIn, res.CheckOut),
		CorrelationID: scope.TenantID + ":" + res.ID,
		ExpiresInSec:  int((24 * time.Hour).Seconds()),
	})
	if err != nil {
		return nil, "", fmt.Errorf("gerando cobrança: %w", err)
	}

	now := time.Now()
	tx := model.Transaction{
		ID:               uuid.Must(uuid.NewV7()).String(),
		TenantID:         scope.TenantID,
		ReservationID:    res.ID,
		ClientID:         scope.ClientID,
		ConversationID:   scope.ConversationID,
		Amount:           charge.Amount,
		Currency:         charge.Currency,
		Description:      fmt.Sprintf("Pix da reserva %s", res.ID),
		Status:           model.TransactionPending,
		ProviderChargeID: charge.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.store.Create(ctx, scope.TenantID, store.CollectionTransactions, tx.ID, tx); err != nil {
		return nil, "", fmt.Errorf("registrando transação: %w", err)
	}

	png, err := qrcode.Encode(charge.PaymentCode, qrcode.Medium, 256)
	if err != nil {
		return nil, "", fmt.Errorf("gerando QR code: %w", err)
	}

	return map[string]any{
		"transaction_id": tx.ID,
		"reservation_id": res.ID,
		"amount":         charge.Amount,
		"currency":       charge.Currency,
		"payment_code":   charge.PaymentCode,
		"qr_code_png":    base64.StdEncoding.EncodeToString(png),
		"expires_at":     charge.ExpiresAt.Format(time.RFC3339),
	}, "Pix gerado! É só escanear o QR code ou usar o copia e cola. 💳", nil
}
