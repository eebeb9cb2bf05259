package payment

import (
	"github.com/reserva-ai/commerce-platform/internal/model"
)

// Provider status values the core must recognize.
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusExpired   = "EXPIRED"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
)

// MapStatus maps a provider status onto the internal transaction status.
// EXPIRED collapses into cancelled. The second return value is false for
// unrecognized statuses, which map to pending — callers must log a warning,
// never drop the update silently.
func MapStatus(provider string) (model.TransactionStatus, bool) {
	switch provider {
	case StatusPending:
		return model.TransactionPending, true
	case StatusPaid:
		return model.TransactionPaid, true
	case StatusExpired, StatusCancelled:
		return model.TransactionCancelled, true
	case StatusRefunded:
		return model.TransactionRefunded, true
	default:
		return model.TransactionPending, false
	}
}
