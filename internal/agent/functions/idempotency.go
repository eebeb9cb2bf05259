package functions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

// idemRecord is the persisted result of a previously executed idempotent
// call, keyed by conversation id + function fingerprint.
type idemRecord struct {
	Key       string               `json:"key"`
	TenantID  string               `json:"tenant_id"`
	Result    model.FunctionResult `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// IdempotencyStore records results of financially significant calls so an
// at-least-once retry returns the prior result instead of duplicating the
// side effect.
type IdempotencyStore struct {
	store  store.Store
	ttl    time.Duration
	logger *logger.Logger
}

func NewIdempotencyStore(s store.Store, ttl time.Duration, log *logger.Logger) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{store: s, ttl: ttl, logger: log}
}

// Get returns the recorded result for the key, if present and not expired.
func (s *IdempotencyStore) Get(ctx context.Context, tenantID, key string) (model.FunctionResult, bool) {
	var rec idemRecord
	err := s.store.Get(ctx, tenantID, store.CollectionIdempotency, key, &rec)
	if err != nil {
		return model.FunctionResult{}, false
	}
	if time.Now().After(rec.ExpiresAt) {
		_ = s.store.Delete(ctx, tenantID, store.CollectionIdempotency, key)
		return model.FunctionResult{}, false
	}
	return rec.Result, true
}

// Put records a successful result. A racing writer winning first is fine:
// both recorded the same outcome.
func (s *IdempotencyStore) Put(ctx context.Context, tenantID, key string, res model.FunctionResult) {
	now := time.Now()
	rec := idemRecord{
		Key:       key,
		TenantID:  tenantID,
		Result:    res,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, tenantID, store.CollectionIdempotency, key, rec); err != nil {
		if err == store.ErrAlreadyExists {
			return
		}
		s.logger.Warn("failed to record idempotency key",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
