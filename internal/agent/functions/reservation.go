package functions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
)

// CreateReservation books a stay. Financially significant: retried identical
// calls must return the prior reservation, never create a second one.
type CreateReservation struct {
	store store.Store
}

func NewCreateReservation(s store.Store) *CreateReservation {
	return &CreateReservation{store: s}
}

func (h *CreateReservation) Name() string { return "create_reservation" }
func (h *CreateReservation) Description() string {
	return "Cria uma pré-reserva para o cliente após confirmação explícita de datas e valor"
}
func (h *CreateReservation) Idempotent() bool { return true }

func (h *CreateReservation) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"property_id": {Type: "string", Description: "ID do imóvel"},
			"check_in":    {Type: "string", Description: "Data de entrada (AAAA-MM-DD)"},
			"check_out":   {Type: "string", Description: "Data de saída (AAAA-MM-DD)"},
			"guests":      {Type: "integer", Description: "Número de hóspedes"},
		},
		Required: []string{"property_id", "check_in", "check_out", "guests"},
	}
}

func (h *CreateReservation) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	propertyID, err := stringArg(args, "property_id")
	if err != nil {
		return nil, "", err
	}
	checkIn, err := stringArg(args, "check_in")
	if err != nil {
		return nil, "", err
	}
	checkOut, err := stringArg(args, "check_out")
	if err != nil {
		return nil, "", err
	}
	guests, err := intArg(args, "guests")
	if err != nil {
		return nil, "", err
	}

	nights, err := parseStay(checkIn, checkOut)
	if err != nil {
		return nil, "", err
	}

	p, err := loadProperty(ctx, h.store, scope, propertyID)
	if err != nil {
		return nil, "", err
	}
	if guests < 1 || guests > p.MaxGuests {
		return nil, "", fmt.Errorf("o imóvel acomoda até %d hóspedes", p.MaxGuests)
	}

	now := time.Now()
	res := model.Reservation{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       scope.TenantID,
		PropertyID:     p.ID,
		ClientID:       scope.ClientID,
		ConversationID: scope.ConversationID,
		CheckIn:        checkIn,
		CheckOut:       checkOut,
		Guests:         guests,
		TotalAmount:    float64(nights)*p.NightlyRate + p.CleaningFee,
		Currency:       p.Currency,
		Status:         model.ReservationPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.Create(ctx, scope.TenantID, store.CollectionReservations, res.ID, res); err != nil {
		return nil, "", fmt.Errorf("criando reserva: %w", err)
	}

	return map[string]any{
		"reservation": map[string]any{
			"id":           res.ID,
			"property_id":  res.PropertyID,
			"check_in":     res.CheckIn,
			"check_out":    res.CheckOut,
			"guests":       res.Guests,
			"total_amount": res.TotalAmount,
			"currency":     res.Currency,
			"status":       string(res.Status),
		},
	}, fmt.Sprintf("Pré-reserva criada para *%s*! Ela fica garantida após o pagamento.", p.Title), nil
}
