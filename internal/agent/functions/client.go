package functions

import (
	"context"
	"fmt"
	"time"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
)

// RegisterClient updates the caller's customer profile (name, preferences).
// The client record itself already exists: it is created by the pipeline on
// the first inbound message.
type RegisterClient struct {
	store store.Store
}

func NewRegisterClient(s store.Store) *RegisterClient {
	return &RegisterClient{store: s}
}

func (h *RegisterClient) Name() string { return "register_client" }
func (h *RegisterClient) Description() string {
	return "Cadastra ou atualiza nome e preferências do cliente atual"
}
func (h *RegisterClient) Idempotent() bool { return false }

func (h *RegisterClient) Parameters() *ParamSchema {
	return &ParamSchema{
		Type: "object",
		Properties: map[string]*ParamSchema{
			"name": {Type: "string", Description: "Nome completo do cliente"},
			"preferences": {
				Type:        "object",
				Description: "Preferências livres, ex.: {\"pet\": \"sim\", \"andar\": \"alto\"}",
			},
		},
	}
}

func (h *RegisterClient) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	name := optionalStringArg(args, "name")
	prefs, _ := args["preferences"].(map[string]any)
	if name == "" && len(prefs) == 0 {
		return nil, "", fmt.Errorf("informe um nome ou ao menos uma preferência")
	}

	var client model.Client
	if err := h.store.Get(ctx, scope.TenantID, store.CollectionClients, scope.ClientID, &client); err != nil {
		return nil, "", fmt.Errorf("carregando cliente: %w", err)
	}
	if err := isolationCheck(store.CollectionClients, client.ID, client.TenantID, scope.TenantID); err != nil {
		return nil, "", err
	}

	if name != "" {
		client.Name = name
	}
	if len(prefs) > 0 {
		if client.Preferences == nil {
			client.Preferences = make(map[string]string, len(prefs))
		}
		for k, v := range prefs {
			client.Preferences[k] = fmt.Sprint(v)
		}
	}
	client.UpdatedAt = time.Now()

	if err := h.store.Update(ctx, scope.TenantID, store.CollectionClients, client.ID, client); err != nil {
		return nil, "", fmt.Errorf("atualizando cliente: %w", err)
	}

	return map[string]any{
		"client_id": client.ID,
		"name":      client.Name,
	}, "Cadastro atualizado com sucesso! ✅", nil
}
