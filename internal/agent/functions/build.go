package functions

import (
	"time"

	"github.com/reserva-ai/commerce-platform/internal/outbound"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

// BuildRegistry wires the full handler set. charges may be nil when the
// payment provider is not configured; the payment handler reports that at
// call time instead of breaking registration.
func BuildRegistry(s store.Store, sink outbound.Sink, charges ChargeCreator, idem *IdempotencyStore, timeout time.Duration, log *logger.Logger) *Registry {
	r := NewRegistry(idem, timeout, log)

	r.Register(NewSearchProperties(s))
	r.Register(NewGetPropertyDetails(s))
	r.Register(NewSendPropertyMedia(s, sink, log))
	r.Register(NewCalculateQuote(s))
	r.Register(NewRegisterClient(s))
	r.Register(NewCreateReservation(s))
	r.Register(NewCreatePaymentRequest(s, charges))
	r.Register(NewCreateTransaction(s))

	return r
}
