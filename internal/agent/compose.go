package agent

import (
	"fmt"
	"strings"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

// composeMaxListed caps how many search hits appear in the reply text.
const composeMaxListed = 3

// fallbackReply is sent when neither the planner draft nor the function
// results produced any text. The reply is never empty.
const fallbackReply = "Desculpe, não consegui processar sua mensagem agora. Pode tentar de novo?"

// RateLimitedReply is the message a sender sees when admission rejects the
// turn. Exported for the transport layer so the 429 body speaks the same
// language as every other customer-facing string.
const RateLimitedReply = "Ops, muitas mensagens em pouco tempo! 😅 Me dá um instante e tenta de novo, por favor."

// searchLimitedReply goes into the reply when the search budget for the
// conversation's channel is exhausted mid-turn.
const searchLimitedReply = "Fiz muitas buscas em seguida, preciso de uma pausa rapidinha. Tenta de novo em um minutinho? 🙏"

// Compose merges the planner's draft reply with the dispatched function
// results into the final outbound text.
func Compose(draft string, results []model.FunctionResult) string {
	parts := make([]string, 0, len(results)+1)
	if s := strings.TrimSpace(draft); s != "" {
		parts = append(parts, s)
	}

	for _, res := range results {
		if line := resultLine(res); line != "" {
			parts = append(parts, line)
		}
	}

	if len(parts) == 0 {
		return fallbackReply
	}
	return strings.Join(parts, "\n\n")
}

func resultLine(res model.FunctionResult) string {
	if res.AlreadyHandled {
		return "Essa solicitação já foi atendida há pouco, tá? Se precisar de algo diferente é só me falar. 🙂"
	}
	if !res.Success {
		// Throttled calls are the one failure the client should hear about.
		if res.Error == "rate_limited" {
			return res.Message
		}
		return ""
	}
	switch res.FunctionName {
	case "search_properties":
		return searchSummary(res.Data)
	case "calculate_quote":
		return quoteSummary(res.Data)
	}
	return res.Message
}

// quoteSummary renders a stay quote with the per-night breakdown.
func quoteSummary(data map[string]any) string {
	title, _ := data["title"].(string)
	nights := intValue(data["nights"])
	rate, _ := data["nightly_rate"].(float64)
	fee, _ := data["cleaning_fee"].(float64)
	total, _ := data["total"].(float64)

	var b strings.Builder
	fmt.Fprintf(&b, "Orçamento para *%s*:\n", title)
	fmt.Fprintf(&b, "🛏 %d noites × %s = %s\n", nights, formatBRL(rate), formatBRL(float64(nights)*rate))
	if fee > 0 {
		fmt.Fprintf(&b, "🧹 Limpeza: %s\n", formatBRL(fee))
	}
	fmt.Fprintf(&b, "💰 Total: *%s*", formatBRL(total))
	return b.String()
}

// searchSummary renders the first hits of a search result as a short list.
func searchSummary(data map[string]any) string {
	props, _ := data["properties"].([]map[string]any)
	if len(props) == 0 {
		return "Não encontrei imóveis com esses filtros. 😕 Quer tentar outras datas ou outra cidade?"
	}

	var b strings.Builder
	total := intValue(data["total"])
	if total <= 0 {
		total = len(props)
	}
	fmt.Fprintf(&b, "Encontrei %d opções! Olha só:\n", total)

	listed := props
	if len(listed) > composeMaxListed {
		listed = listed[:composeMaxListed]
	}
	for _, p := range listed {
		title, _ := p["title"].(string)
		city, _ := p["city"].(string)
		rate, _ := p["nightly_rate"].(float64)
		fmt.Fprintf(&b, "\n🏠 *%s* (%s) · %s/noite", title, city, formatBRL(rate))
	}
	if total > len(listed) {
		b.WriteString("\n\nQuer ver mais opções ou detalhes de alguma?")
	}
	return b.String()
}

// formatBRL renders a value in Brazilian currency style, e.g. "R$ 1.234,56".
func formatBRL(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	cents := int64(v*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, b.String(), frac)
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
