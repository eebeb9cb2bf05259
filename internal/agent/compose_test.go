package agent

import (
	"strings"
	"testing"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

func TestComposeNeverEmpty(t *testing.T) {
	if got := Compose("", nil); got != fallbackReply {
		t.Fatalf("reply = %q, want fallback", got)
	}
}

func TestComposeDraftOnly(t *testing.T) {
	if got := Compose("Olá! Como posso ajudar?", nil); got != "Olá! Como posso ajudar?" {
		t.Fatalf("reply = %q", got)
	}
}

func TestComposeSearchSummaryTopThree(t *testing.T) {
	props := make([]map[string]any, 5)
	for i, name := range []string{"Casa A", "Casa B", "Casa C", "Casa D", "Casa E"} {
		props[i] = map[string]any{
			"title":        name,
			"city":         "Gramado",
			"nightly_rate": 450.0,
		}
	}
	results := []model.FunctionResult{{
		FunctionName: "search_properties",
		Success:      true,
		Data:         map[string]any{"total": 5, "properties": props},
	}}

	got := Compose("Achei umas opções!", results)
	for _, want := range []string{"Casa A", "Casa B", "Casa C"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing %q:\n%s", want, got)
		}
	}
	for _, skip := range []string{"Casa D", "Casa E"} {
		if strings.Contains(got, skip) {
			t.Fatalf("reply should not list %q:\n%s", skip, got)
		}
	}
	if !strings.Contains(got, "R$ 450,00") {
		t.Fatalf("reply missing formatted rate:\n%s", got)
	}
}

func TestComposeEmptySearch(t *testing.T) {
	results := []model.FunctionResult{{
		FunctionName: "search_properties",
		Success:      true,
		Data:         map[string]any{"total": 0, "properties": []map[string]any{}},
	}}
	got := Compose("", results)
	if !strings.Contains(got, "Não encontrei") {
		t.Fatalf("reply = %q", got)
	}
}

func TestComposeAlreadyHandled(t *testing.T) {
	results := []model.FunctionResult{{
		FunctionName:   "create_reservation",
		AlreadyHandled: true,
	}}
	got := Compose("", results)
	if !strings.Contains(got, "já foi atendida") {
		t.Fatalf("reply = %q", got)
	}
}

func TestComposeQuoteSummary(t *testing.T) {
	results := []model.FunctionResult{{
		FunctionName: "calculate_quote",
		Success:      true,
		Data: map[string]any{
			"title":        "Chalé da Montanha",
			"nights":       3,
			"nightly_rate": 420.0,
			"cleaning_fee": 90.0,
			"total":        1350.0,
		},
	}}
	got := Compose("", results)
	for _, want := range []string{"Chalé da Montanha", "3 noites", "R$ 420,00", "R$ 90,00", "R$ 1.350,00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing %q:\n%s", want, got)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "R$ 0,00"},
		{9.9, "R$ 9,90"},
		{450, "R$ 450,00"},
		{1234.56, "R$ 1.234,56"},
		{1234567.89, "R$ 1.234.567,89"},
		{-35.5, "-R$ 35,50"},
	}
	for _, c := range cases {
		if got := formatBRL(c.in); got != c.want {
			t.Fatalf("formatBRL(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
