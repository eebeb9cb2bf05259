package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/reserva-ai/commerce-platform/internal/model"
)

// SeedProperties loads property inventory from a JSON file into the store.
// Existing documents are left untouched, so re-running a seed is safe.
// Dev/demo path; production inventory is managed by the dashboard.
func SeedProperties(ctx context.Context, s Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	var props []model.Property
	if err := json.Unmarshal(raw, &props); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}

	created := 0
	for _, p := range props {
		if p.ID == "" || p.TenantID == "" {
			return created, fmt.Errorf("seed property missing id or tenant_id")
		}
		err := s.Create(ctx, p.TenantID, CollectionProperties, p.ID, p)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
