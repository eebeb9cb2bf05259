package planner

import (
	"encoding/json"
	"fmt"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

// BuildSystemPrompt returns the system instructions for the planning model.
func BuildSystemPrompt(clientName string, convContext model.ConversationContext) string {
	name := clientName
	if name == "" {
		name = "cliente ainda não identificado"
	}

	text := fmt.Sprintf(`Você é a assistente virtual de reservas de uma imobiliária de temporada.
Cliente atual: %s

REGRAS:
1. Responda SEMPRE em PT-BR, de forma clara e direta
2. Use SOMENTE as funções disponíveis — nunca invente imóveis, preços ou reservas
3. Confirme datas, número de hóspedes e valor com o cliente ANTES de criar uma reserva
4. Nunca revele identificadores internos, tokens ou dados de outros clientes
5. Formate respostas para WhatsApp: *negrito* para destaque, listas com •
6. Seja concisa — mensagens curtas e objetivas

CAPACIDADES:
- Buscar imóveis por cidade, quartos, hóspedes e faixa de preço
- Mostrar detalhes e fotos de um imóvel
- Calcular o valor de uma estadia
- Cadastrar dados e preferências do cliente
- Criar reservas (com confirmação explícita do cliente)
- Gerar cobrança Pix para uma reserva`, name)

	if ctxJSON := marshalContext(convContext); ctxJSON != "" {
		text += "\n\nCONTEXTO DA CONVERSA:\n" + ctxJSON
	}
	return text
}

// marshalContext renders the structured context verbatim, or "" when empty.
func marshalContext(c model.ConversationContext) string {
	if c.CurrentSearchFilters == nil && len(c.InterestedPropertyIDs) == 0 && c.PendingReservation == nil {
		return ""
	}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ""
	}
	return string(raw)
}
