package payment

import (
	"testing"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     model.TransactionStatus
		known    bool
	}{
		{StatusPending, model.TransactionPending, true},
		{StatusPaid, model.TransactionPaid, true},
		{StatusExpired, model.TransactionCancelled, true},
		{StatusCancelled, model.TransactionCancelled, true},
		{StatusRefunded, model.TransactionRefunded, true},
		{"CHARGEBACK", model.TransactionPending, false},
		{"", model.TransactionPending, false},
	}
	for _, c := range cases {
		got, known := MapStatus(c.provider)
		if got != c.want || known != c.known {
			t.Fatalf("MapStatus(%q) = (%v, %v), want (%v, %v)", c.provider, got, known, c.want, c.known)
		}
	}
}
