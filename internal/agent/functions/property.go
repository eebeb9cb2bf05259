package functions

import (
	"context"
	"errors"
	"fmt"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/outbound"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

// loadProperty fetches a property and verifies it belongs to the caller's
// tenant. Cross-tenant ids are rejected, never silently ignored.
func loadProperty(ctx context.Context, s store.Store, scope Scope, propertyID string) (*model.Property, error) {
	var p model.Property
	err := s.Get(ctx, scope.TenantID, store.CollectionProperties, propertyID, &p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("imóvel não encontrado: %s", propertyID)
	}
	if err != nil {
		return nil, err
	}
	if err := isolationCheck(store.CollectionProperties, propertyID, p.TenantID, scope.TenantID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPropertyDetails returns the full record for one property. Results feed
// the conversation's interested-properties context.
type GetPropertyDetails struct {
	store store.Store
}

func NewGetPropertyDetails(s store.Store) *GetPropertyDetails {
	return &GetPropertyDetails{store: s}
}

func (h *GetPropertyDetails) Name() string { return "get_property_details" }
func (h *GetPropertyDetails) Description() string {
	return "Retorna detalhes completos de um imóvel pelo ID"
}
func (h *GetPropertyDetails) Idempotent() bool { return false }

func (h *GetPropertyDetails) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"property_id": {Type: "string", Description: "ID do imóvel"},
		},
		Required: []string{"property_id"},
	}
}

func (h *GetPropertyDetails) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	propertyID, err := stringArg(args, "property_id")
	if err != nil {
		return nil, "", err
	}

	p, err := loadProperty(ctx, h.store, scope, propertyID)
	if err != nil {
		return nil, "", err
	}

	return map[string]any{
		"property": map[string]any{
			"id":           p.ID,
			"title":        p.Title,
			"city":         p.City,
			"neighborhood": p.Neighborhood,
			"bedrooms":     p.Bedrooms,
			"max_guests":   p.MaxGuests,
			"nightly_rate": p.NightlyRate,
			"cleaning_fee": p.CleaningFee,
			"currency":     p.Currency,
			"photos":       len(p.PhotoURLs),
		},
	}, "", nil
}

// SendPropertyMedia dispatches a property's photos to the customer channel.
// Delivery is fire-and-forget; the function reports what was dispatched.
type SendPropertyMedia struct {
	store  store.Store
	sink   outbound.Sink
	logger *logger.Logger
}

func NewSendPropertyMedia(s store.Store, sink outbound.Sink, log *logger.Logger) *SendPropertyMedia {
	return &SendPropertyMedia{store: s, sink: sink, logger: log}
}

func (h *SendPropertyMedia) Name() string { return "send_property_media" }
func (h *SendPropertyMedia) Description() string {
	return "Envia as fotos de um imóvel para o cliente"
}
func (h *SendPropertyMedia) Idempotent() bool { return false }

func (h *SendPropertyMedia) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"property_id": {Type: "string", Description: "ID do imóvel"},
		},
		Required: []string{"property_id"},
	}
}

func (h *SendPropertyMedia) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	propertyID, err := stringArg(args, "property_id")
	if err != nil {
		return nil, "", err
	}

	p, err := loadProperty(ctx, h.store, scope, propertyID)
	if err != nil {
		return nil, "", err
	}
	if len(p.PhotoURLs) == 0 {
		return nil, "", fmt.Errorf("imóvel %s não possui fotos cadastradas", propertyID)
	}

	var conv model.Conversation
	if err := h.store.Get(ctx, scope.TenantID, store.CollectionConversations, scope.ConversationID, &conv); err != nil {
		return nil, "", fmt.Errorf("carregando conversa: %w", err)
	}

	outbound.Dispatch(ctx, h.sink, &model.OutboundMessage{
		TenantID:       scope.TenantID,
		ChannelAddress: conv.ChannelAddress,
		Text:           fmt.Sprintf("Fotos de *%s*", p.Title),
		MediaURLs:      p.PhotoURLs,
	}, h.logger)

	return map[string]any{
		"property_id": p.ID,
		"photos_sent": len(p.PhotoURLs),
	}, "Acabei de enviar as fotos! 📷", nil
}
