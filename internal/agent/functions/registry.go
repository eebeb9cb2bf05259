// Package functions maps planner function-call requests onto tenant-scoped
// handlers with per-call isolation and idempotency for financially
// significant writes.
package functions

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/planner"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
	"github.com/reserva-ai/commerce-platform/pkg/metrics"
)

const (
	// Max items in a list result before truncation, to bound reply size and
	// planner token usage on the next turn.
	maxListItems = 10
	// Max JSON output length before truncation.
	maxOutputLen = 8192
)

// Scope carries the caller's identity into every handler. All side effects
// are restricted to Scope.TenantID.
type Scope struct {
	TenantID       string
	ClientID       string
	ConversationID string
}

// Handler is a single function the planner can request.
type Handler interface {
	Name() string
	Description() string
	Parameters() *ParamSchema

	// Idempotent reports whether the underlying write is financially
	// significant: retried identical calls must return the prior result
	// instead of duplicating the side effect.
	Idempotent() bool

	Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error)
}

// Registry holds all registered handlers.
type Registry struct {
	handlers map[string]Handler
	idem     *IdempotencyStore
	timeout  time.Duration
	logger   *logger.Logger
}

// NewRegistry creates an empty registry. idem may be nil when no idempotent
// handler is registered (tests).
func NewRegistry(idem *IdempotencyStore, timeout time.Duration, log *logger.Logger) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Registry{
		handlers: make(map[string]Handler),
		idem:     idem,
		timeout:  timeout,
		logger:   log,
	}
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Definitions returns tool definitions for the planning service, sorted by
// name so prompts are stable across restarts.
func (r *Registry) Definitions() []planner.ToolDefinition {
	defs := make([]planner.ToolDefinition, 0, len(r.handlers))
	for _, h := range r.handlers {
		td := planner.ToolDefinition{
			Name:        h.Name(),
			Description: h.Description(),
		}
		if p := h.Parameters(); p != nil {
			td.Parameters = p.ToMap()
		}
		defs = append(defs, td)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ExecuteAll runs every requested call in order and always returns one result
// per request. Failures are captured per call and never abort the remainder.
func (r *Registry) ExecuteAll(ctx context.Context, scope Scope, calls []model.FunctionCall) []model.FunctionResult {
	results := make([]model.FunctionResult, len(calls))
	for i, call := range calls {
		results[i] = r.Execute(ctx, scope, call)
	}
	return results
}

// Execute validates arguments, applies the per-call timeout and idempotency
// checks, and captures panics and errors into the result.
func (r *Registry) Execute(ctx context.Context, scope Scope, call model.FunctionCall) (res model.FunctionResult) {
	res = model.FunctionResult{FunctionName: call.Name}

	h, ok := r.handlers[call.Name]
	if !ok {
		// Unknown names from the planner are no-ops with a recorded warning,
		// never fatal.
		r.logger.Warn("planner requested unknown function",
			zap.String("function", call.Name),
			zap.String("tenant_id", scope.TenantID),
		)
		res.Error = "unknown_function"
		metrics.FunctionCallsTotal.WithLabelValues(call.Name, "unknown").Inc()
		return res
	}

	if schema := h.Parameters(); schema != nil {
		if err := validateArgs(schema, call.Arguments); err != nil {
			res.Error = "validation"
			res.Message = err.Error()
			metrics.FunctionCallsTotal.WithLabelValues(call.Name, "invalid").Inc()
			return res
		}
	}

	idemKey := ""
	if h.Idempotent() && r.idem != nil {
		idemKey = scope.ConversationID + ":" + call.Fingerprint()
		if prior, ok := r.idem.Get(ctx, scope.TenantID, idemKey); ok {
			r.logger.Info("returning prior result for retried call",
				zap.String("function", call.Name),
				zap.String("conversation_id", scope.ConversationID),
			)
			metrics.FunctionCallsTotal.WithLabelValues(call.Name, "idempotent_replay").Inc()
			return prior
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		// One handler's panic must not prevent the remaining calls from
		// running.
		if rec := recover(); rec != nil {
			r.logger.Error("function handler panicked",
				zap.String("function", call.Name),
				zap.Any("panic", rec),
			)
			res = model.FunctionResult{
				FunctionName: call.Name,
				Error:        "internal",
			}
			metrics.FunctionCallsTotal.WithLabelValues(call.Name, "panic").Inc()
		}
	}()

	start := time.Now()
	data, message, err := h.Execute(callCtx, scope, call.Arguments)
	elapsed := time.Since(start)

	r.logger.Debug("function executed",
		zap.String("function", call.Name),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
	)

	if err != nil {
		res.Error = err.Error()
		metrics.FunctionCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return res
	}

	res.Success = true
	res.Data = truncateOutput(data)
	res.Message = message
	metrics.FunctionCallsTotal.WithLabelValues(call.Name, "success").Inc()

	if idemKey != "" {
		r.idem.Put(ctx, scope.TenantID, idemKey, res)
	}
	return res
}

// truncateOutput caps large list fields and then the total payload size.
func truncateOutput(result map[string]any) map[string]any {
	if result == nil {
		return nil
	}

	for key, val := range result {
		items, ok := val.([]map[string]any)
		if !ok || len(items) <= maxListItems {
			continue
		}
		originalCount := len(items)
		result[key] = items[:maxListItems]
		result["_truncated"] = true
		result["_original_count"] = originalCount
		return result
	}

	data, err := json.Marshal(result)
	if err != nil || len(data) <= maxOutputLen {
		return result
	}
	return map[string]any{
		"_truncated": true,
		"_summary":   string(data[:maxOutputLen]),
	}
}

// isolationCheck verifies a loaded record belongs to the caller's tenant.
func isolationCheck(collection, id, recordTenant, callerTenant string) error {
	if recordTenant != callerTenant {
		return &model.IsolationError{Collection: collection, ID: id}
	}
	return nil
}
