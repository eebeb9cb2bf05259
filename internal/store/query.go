package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// QueryAll decodes and collects every document in the tenant's collection
// that satisfies match. A nil match collects everything.
func QueryAll[T any](ctx context.Context, s Store, tenantID, collection string, match func(T) bool, out *[]T) error {
	return s.Query(ctx, tenantID, collection, func(id string, raw []byte) error {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}
		if match == nil || match(doc) {
			*out = append(*out, doc)
		}
		return nil
	})
}

// QueryFirst decodes the first document satisfying match. Returns ErrNotFound
// when no document matches.
func QueryFirst[T any](ctx context.Context, s Store, tenantID, collection string, match func(T) bool) (T, error) {
	var zero T
	found := false
	var result T

	err := s.Query(ctx, tenantID, collection, func(id string, raw []byte) error {
		if found {
			return nil
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}
		if match(doc) {
			result = doc
			found = true
		}
		return nil
	})
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, ErrNotFound
	}
	return result, nil
}
