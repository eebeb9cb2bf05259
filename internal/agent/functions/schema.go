package functions

import (
	"fmt"
	"math"
)

// ParamSchema describes handler parameters using JSON Schema conventions.
type ParamSchema struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]*ParamSchema `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
	Enum        []string                `json:"enum,omitempty"`
	Items       *ParamSchema            `json:"items,omitempty"`
}

// ToMap converts the schema to the generic map shape the planning service
// expects.
func (s *ParamSchema) ToMap() map[string]any {
	m := map[string]any{"type": s.Type}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any)
		for k, v := range s.Properties {
			props[k] = v.ToMap()
		}
		m["properties"] = props
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	if s.Items != nil {
		m["items"] = s.Items.ToMap()
	}
	return m
}

// validateArgs checks that all required parameters are present and that typed
// parameters have the declared type. Planner output is never trusted as
// already-typed.
func validateArgs(schema *ParamSchema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	for _, req := range schema.Required {
		v, ok := args[req]
		if !ok || v == nil {
			return fmt.Errorf("parâmetro obrigatório ausente: %s", req)
		}

		prop, hasProp := schema.Properties[req]
		if !hasProp {
			continue
		}

		switch prop.Type {
		case "string":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("parâmetro %s deve ser string", req)
			}
			if s == "" {
				return fmt.Errorf("parâmetro %s não pode ser vazio", req)
			}
			if len(prop.Enum) > 0 {
				valid := false
				for _, e := range prop.Enum {
					if s == e {
						valid = true
						break
					}
				}
				if !valid {
					return fmt.Errorf("parâmetro %s deve ser um de: %v", req, prop.Enum)
				}
			}
		case "integer", "number":
			switch v.(type) {
			case float64, int:
				// ok
			default:
				return fmt.Errorf("parâmetro %s deve ser numérico", req)
			}
		}
	}
	return nil
}

// --- arg extraction helpers ---

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("parâmetro obrigatório ausente: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parâmetro %s deve ser string não vazia", key)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("parâmetro obrigatório ausente: %s", key)
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("parâmetro %s deve ser inteiro", key)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("parâmetro %s deve ser numérico", key)
	}
}

func optionalIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func floatArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("parâmetro obrigatório ausente: %s", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parâmetro %s deve ser numérico", key)
	}
}

func optionalFloatArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
