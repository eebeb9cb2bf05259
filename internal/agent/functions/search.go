package functions

import (
	"context"
	"strings"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
)

// SearchProperties queries the tenant's inventory by the filters the planner
// extracted from the customer's message.
type SearchProperties struct {
	store store.Store
}

func NewSearchProperties(s store.Store) *SearchProperties {
	return &SearchProperties{store: s}
}

func (h *SearchProperties) Name() string { return "search_properties" }
func (h *SearchProperties) Description() string {
	return "Busca imóveis disponíveis por cidade, quartos, hóspedes e faixa de preço"
}
func (h *SearchProperties) Idempotent() bool { return false }

func (h *SearchProperties) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"city":       {Type: "string", Description: "Cidade desejada"},
			"bedrooms":   {Type: "integer", Description: "Número mínimo de quartos"},
			"max_guests": {Type: "integer", Description: "Número de hóspedes"},
			"min_price":  {Type: "number", Description: "Diária mínima"},
			"max_price":  {Type: "number", Description: "Diária máxima"},
		},
	}
}

func (h *SearchProperties) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	city := optionalStringArg(args, "city")
	bedrooms, hasBedrooms := optionalIntArg(args, "bedrooms")
	maxGuests, hasGuests := optionalIntArg(args, "max_guests")
	minPrice, hasMin := optionalFloatArg(args, "min_price")
	maxPrice, hasMax := optionalFloatArg(args, "max_price")

	// Normalized filter echo; the context updater persists this verbatim as
	// the conversation's current search filters.
	filters := map[string]any{}
	if city != "" {
		filters["city"] = city
	}
	if hasBedrooms {
		filters["bedrooms"] = bedrooms
	}
	if hasGuests {
		filters["max_guests"] = maxGuests
	}
	if hasMin {
		filters["min_price"] = minPrice
	}
	if hasMax {
		filters["max_price"] = maxPrice
	}

	var matches []model.Property
	err := store.QueryAll(ctx, h.store, scope.TenantID, store.CollectionProperties, func(p model.Property) bool {
		if !p.Active {
			return false
		}
		if city != "" && !strings.EqualFold(p.City, city) {
			return false
		}
		if hasBedrooms && p.Bedrooms < bedrooms {
			return false
		}
		if hasGuests && p.MaxGuests < maxGuests {
			return false
		}
		if hasMin && p.NightlyRate < minPrice {
			return false
		}
		if hasMax && p.NightlyRate > maxPrice {
			return false
		}
		return true
	}, &matches)
	if err != nil {
		return nil, "", err
	}

	items := make([]map[string]any, len(matches))
	for i, p := range matches {
		items[i] = map[string]any{
			"id":           p.ID,
			"title":        p.Title,
			"city":         p.City,
			"neighborhood": p.Neighborhood,
			"bedrooms":     p.Bedrooms,
			"max_guests":   p.MaxGuests,
			"nightly_rate": p.NightlyRate,
			"currency":     p.Currency,
		}
	}

	return map[string]any{
		"total":      len(items),
		"properties": items,
		"filters":    filters,
	}, "", nil
}
