package functions

import (
	"context"
	"fmt"
	"time"

	"github.com/reserva-ai/commerce-platform/internal/store"
)

const dateLayout = "2006-01-02"

// parseStay validates a check-in/check-out pair and returns the night count.
func parseStay(checkIn, checkOut string) (int, error) {
	in, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return 0, fmt.Errorf("data de entrada inválida, use AAAA-MM-DD: %s", checkIn)
	}
	out, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return 0, fmt.Errorf("data de saída inválida, use AAAA-MM-DD: %s", checkOut)
	}
	nights := int(out.Sub(in).Hours() / 24)
	if nights <= 0 {
		return 0, fmt.Errorf("a saída deve ser depois da entrada")
	}
	return nights, nil
}

// CalculateQuote computes the price of a stay: nights × nightly rate plus the
// cleaning fee.
type CalculateQuote struct {
	store store.Store
}

func NewCalculateQuote(s store.Store) *CalculateQuote {
	return &CalculateQuote{store: s}
}

func (h *CalculateQuote) Name() string { return "calculate_quote" }
func (h *CalculateQuote) Description() string {
	return "Calcula o valor total de uma estadia em um imóvel"
}
func (h *CalculateQuote) Idempotent() bool { return false }

func (h *CalculateQuote) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"property_id": {Type: "string", Description: "ID do imóvel"},
			"check_in":    {Type: "string", Description: "Data de entrada (AAAA-MM-DD)"},
			"check_out":   {Type: "string", Description: "Data de saída (AAAA-MM-DD)"},
		},
		Required: []string{"property_id", "check_in", "check_out"},
	}
}

func (h *CalculateQuote) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
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

	nights, err := parseStay(checkIn, checkOut)
	if err != nil {
		return nil, "", err
	}

	p, err := loadProperty(ctx, h.store, scope, propertyID)
	if err != nil {
		return nil, "", err
	}

	total := float64(nights)*p.NightlyRate + p.CleaningFee

	return map[string]any{
		"property_id":  p.ID,
		"title":        p.Title,
		"check_in":     checkIn,
		"check_out":    checkOut,
		"nights":       nights,
		"nightly_rate": p.NightlyRate,
		"cleaning_fee": p.CleaningFee,
		"total":        total,
		"currency":     p.Currency,
	}, "", nil
}
