package model

import (
	"time"
)

// TransactionStatus is the internal ledger status. Provider statuses are
// mapped onto this enum; see payment.MapStatus.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionPaid      TransactionStatus = "paid"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Transaction is a ledger entry, usually backed by a payment-provider charge.
type Transaction struct {
	ID               string            `json:"id"`
	TenantID         string            `json:"tenant_id"`
	ReservationID    string            `json:"reservation_id,omitempty"`
	ClientID         string            `json:"client_id"`
	ConversationID   string            `json:"conversation_id,omitempty"`
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	Description      string            `json:"description,omitempty"`
	Status           TransactionStatus `json:"status"`
	ProviderChargeID string            `json:"provider_charge_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
