package functions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
)

// CreateTransaction records a manual ledger entry, e.g. a payment the client
// reports having made outside the Pix flow, or a partial deposit.
type CreateTransaction struct {
	store store.Store
}

func NewCreateTransaction(s store.Store) *CreateTransaction {
	return &CreateTransaction{store: s}
}

func (h *CreateTransaction) Name() string { return "create_transaction" }
func (h *CreateTransaction) Description() string {
	return "Registra uma transação financeira manual no extrato do cliente"
}
func (h *CreateTransaction) Idempotent() bool { return true }

func (h *CreateTransaction) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"amount":         {Type: "number", Description: "Valor em reais"},
			"description":    {Type: "string", Description: "Descrição da transação"},
			"reservation_id": {Type: "string", Description: "Reserva associada, se houver"},
		},
		Required: []string{"amount", "description"},
	}
}

func (h *CreateTransaction) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	amount, err := floatArg(args, "amount")
	if err != nil {
		return nil, "", err
	}
	if amount <= 0 {
		return nil, "", fmt.Errorf("o valor precisa ser maior que zero")
	}
	description, err := stringArg(args, "description")
	if err != nil {
		return nil, "", err
	}
	reservationID := optionalStringArg(args, "reservation_id")

	if reservationID != "" {
		var res model.Reservation
		if err := h.store.Get(ctx, scope.TenantID, store.CollectionReservations, reservationID, &res); err != nil {
			return nil, "", fmt.Errorf("reserva não encontrada: %s", reservationID)
		}
		if err := isolationCheck(store.CollectionReservations, reservationID, res.TenantID, scope.TenantID); err != nil {
			return nil, "", err
		}
	}

	now := time.Now()
	tx := model.Transaction{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       scope.TenantID,
		ReservationID:  reservationID,
		ClientID:       scope.ClientID,
		ConversationID: scope.ConversationID,
		Amount:         amount,
		Currency:       "BRL",
		Description:    description,
		Status:         model.TransactionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.store.Create(ctx, scope.TenantID, store.CollectionTransactions, tx.ID, tx); err != nil {
		return nil, "", fmt.Errorf("registrando transação: %w", err)
	}

	return map[string]any{
		"transaction_id": tx.ID,
		"amount":         tx.Amount,
		"currency":       tx.Currency,
		"status":         string(tx.Status),
	}, "Transação registrada! Assim que o pagamento for confirmado eu te aviso. ✅", nil
}
