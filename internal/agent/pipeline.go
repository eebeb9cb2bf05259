// Package agent implements the message-processing pipeline: admission,
// identity resolution, context assembly, planning, guarded dispatch and
// reply composition for one inbound message.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/agent/functions"
	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/outbound"
	"github.com/reserva-ai/commerce-platform/internal/planner"
	"github.com/reserva-ai/commerce-platform/internal/ratelimit"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
	"github.com/reserva-ai/commerce-platform/pkg/metrics"
)

const (
	defaultTurnTimeout = 90 * time.Second
	maxMessageLen      = 4096
)

// plannerDownReply is the canned degradation reply used when the planning
// service fails. The inbound message stays persisted and the context is left
// untouched so the next turn starts clean.
const plannerDownReply = "Opa, tive um probleminha técnico aqui. 😅 Pode repetir sua mensagem em instantes?"

// Pipeline processes inbound messages end to end.
type Pipeline struct {
	conversations *ConversationStore
	planner       planner.Planner
	registry      *functions.Registry
	guard         *DuplicateGuard
	limiter       ratelimit.Limiter
	sink          outbound.Sink
	events        outbound.EventPublisher
	locks         *lockManager
	turnTimeout   time.Duration
	logger        *logger.Logger
}

// Options configures optional pipeline collaborators.
type Options struct {
	// Limiter gates admission. Nil disables admission control.
	Limiter ratelimit.Limiter
	// Events receives fire-and-forget pipeline events. Nil disables the feed.
	Events outbound.EventPublisher
	// TurnTimeout bounds one whole turn.
	TurnTimeout time.Duration
	// GuardWindow bounds duplicate-call suppression.
	GuardWindow time.Duration
}

func NewPipeline(cs *ConversationStore, pl planner.Planner, reg *functions.Registry, sink outbound.Sink, log *logger.Logger, opts Options) *Pipeline {
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = defaultTurnTimeout
	}
	return &Pipeline{
		conversations: cs,
		planner:       pl,
		registry:      reg,
		guard:         NewDuplicateGuard(opts.GuardWindow),
		limiter:       opts.Limiter,
		sink:          sink,
		events:        opts.Events,
		locks:         newLockManager(),
		turnTimeout:   opts.TurnTimeout,
		logger:        log,
	}
}

// Conversations exposes the persistence layer for the read-side handlers.
func (p *Pipeline) Conversations() *ConversationStore { return p.conversations }

// StartJanitor runs periodic cleanup of locks and guard reservations until
// ctx is cancelled.
func (p *Pipeline) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.locks.cleanup(30 * time.Minute)
			p.guard.Cleanup()
		}
	}
}

// ProcessMessage runs one full turn. Typed errors classify the failure:
// ValidationError for malformed input, RateLimitError for rejected admission,
// StorageError for persistence failures before the turn could complete.
// Planner failures do not surface as errors; the turn completes degraded.
func (p *Pipeline) ProcessMessage(ctx context.Context, tenantID string, req *model.ProcessMessageRequest) (*model.ProcessMessageResponse, error) {
	if err := validateRequest(tenantID, req); err != nil {
		return nil, err
	}

	// The turn must run to completion once accepted: a transport disconnect
	// cancelling the request context would otherwise abort it halfway through
	// its storage writes. Detach from the caller's cancellation and keep only
	// the turn timeout (context values survive for correlation).
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.turnTimeout)
	defer cancel()

	start := time.Now()
	log := p.logger.With(zap.String("tenant_id", tenantID), zap.String("channel_address", req.ChannelAddress))

	// Admission runs before any side effect; a rejected turn leaves no trace
	// beyond the event and the counter.
	if rlErr := p.admit(ctx, tenantID, req, log); rlErr != nil {
		return nil, rlErr
	}

	// One lock per (tenant, address) serializes get-or-create and the
	// final context write for concurrent turns of the same conversation.
	lock := p.locks.acquire(tenantID + "/" + req.ChannelAddress)

	client, err := p.conversations.GetOrCreateClient(ctx, tenantID, req.ChannelAddress, req.SenderPhone)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	conv, err := p.conversations.GetOrCreateActiveConversation(ctx, tenantID, client.ID, req.ChannelAddress)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	inbound, err := p.conversations.AppendMessage(ctx, conv, model.SenderClient, req.Text)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	lock.Unlock()

	log = p.logger.WithTurn(tenantID, conv.ID)

	planReq, err := p.assemblePlanRequest(ctx, conv, client, inbound)
	if err != nil {
		return nil, err
	}

	plan, err := p.planner.Plan(ctx, planReq)
	if err != nil {
		// Degrade, never fail the turn: the inbound message is already
		// persisted and the context stays untouched.
		log.Error("planner failed, degrading turn", zap.Error(err))
		p.finishTurn(ctx, conv, plannerDownReply, log)
		metrics.RecordTurn(tenantID, "planner_degraded", time.Since(start).Seconds())
		p.publishEvent(ctx, tenantID, conv.ID, model.EventTurnFailed, "planner")
		return &model.ProcessMessageResponse{
			Reply:          plannerDownReply,
			ConversationID: conv.ID,
			ClientID:       client.ID,
		}, nil
	}

	results := p.dispatch(ctx, conv, client, plan.Calls, log)

	reply := Compose(plan.Reply, results)
	p.finishTurn(ctx, conv, reply, log)

	if _, changed := MergeContext(conv.Context, results); changed {
		lock = p.locks.acquire(tenantID + "/" + req.ChannelAddress)
		err := p.conversations.UpdateContext(ctx, tenantID, conv.ID, func(cur model.ConversationContext) (model.ConversationContext, bool) {
			// Merge against the freshly read context, not the stale copy, so
			// an interleaved turn's updates survive.
			return MergeContext(cur, results)
		})
		lock.Unlock()
		if err != nil {
			log.Error("context update failed", zap.Error(err))
		}
	}

	metrics.RecordTurn(tenantID, "completed", time.Since(start).Seconds())
	p.publishEvent(ctx, tenantID, conv.ID, model.EventTurnCompleted, "")

	return &model.ProcessMessageResponse{
		Reply:           reply,
		FunctionResults: results,
		ConversationID:  conv.ID,
		ClientID:        client.ID,
	}, nil
}

// dispatch applies the duplicate guard and the search budget, then executes
// the surviving calls in the planner's order, keeping one result per
// requested call.
func (p *Pipeline) dispatch(ctx context.Context, conv *model.Conversation, client *model.Client, calls []model.FunctionCall, log *logger.Logger) []model.FunctionResult {
	if len(calls) == 0 {
		return nil
	}

	scope := functions.Scope{
		TenantID:       conv.TenantID,
		ClientID:       client.ID,
		ConversationID: conv.ID,
	}

	results := make([]model.FunctionResult, len(calls))
	pending := make([]model.FunctionCall, 0, len(calls))
	slots := make([]int, 0, len(calls))
	for i, call := range calls {
		fp := call.Fingerprint()
		if !p.guard.Reserve(conv.ID, fp) {
			log.Info("suppressed duplicate function call", zap.String("function", call.Name))
			RecordSuppressed(call.Name)
			results[i] = model.FunctionResult{
				FunctionName:   call.Name,
				AlreadyHandled: true,
			}
			continue
		}
		if res, limited := p.admitSearch(ctx, conv, call, log); limited {
			results[i] = res
			// A throttled call must stay retryable.
			p.guard.Forget(conv.ID, fp)
			continue
		}
		pending = append(pending, call)
		slots = append(slots, i)
	}

	for j, res := range p.registry.ExecuteAll(ctx, scope, pending) {
		results[slots[j]] = res
		if !res.Success {
			// A failed call must stay retryable.
			p.guard.Forget(conv.ID, pending[j].Fingerprint())
		}
	}
	return results
}

// finishTurn appends the agent reply to the log and hands it to the delivery
// sink. Neither step may fail the turn.
func (p *Pipeline) finishTurn(ctx context.Context, conv *model.Conversation, reply string, log *logger.Logger) {
	if _, err := p.conversations.AppendMessage(ctx, conv, model.SenderAgent, reply); err != nil {
		log.Error("appending agent reply failed", zap.Error(err))
	}
	outbound.Dispatch(ctx, p.sink, &model.OutboundMessage{
		TenantID:       conv.TenantID,
		ChannelAddress: conv.ChannelAddress,
		Text:           reply,
	}, log)
}

// admit runs admission control, returning a RateLimitError on rejection.
// Limiter errors fail open: availability of the conversation flow wins over
// strict accounting.
func (p *Pipeline) admit(ctx context.Context, tenantID string, req *model.ProcessMessageRequest, log *logger.Logger) *model.RateLimitError {
	if p.limiter == nil {
		return nil
	}
	res, err := p.limiter.Check(ctx, tenantID, req.ChannelAddress, ratelimit.PolicyInboundMessage)
	if err != nil {
		log.Warn("rate limiter unavailable, admitting", zap.Error(err))
		return nil
	}
	if res.Allowed {
		return nil
	}
	metrics.RateLimitRejections.WithLabelValues(tenantID, ratelimit.PolicyInboundMessage.Name).Inc()
	p.publishEvent(ctx, tenantID, "", model.EventRateLimited, req.ChannelAddress)
	return &model.RateLimitError{ResetAt: res.ResetAt}
}

// admitSearch charges search calls against the channel's search budget,
// which is wider than the inbound one since a single turn may fan out into
// several searches. A throttled call becomes a failed result with a reply
// line instead of failing the turn. Limiter errors fail open like admit.
func (p *Pipeline) admitSearch(ctx context.Context, conv *model.Conversation, call model.FunctionCall, log *logger.Logger) (model.FunctionResult, bool) {
	if p.limiter == nil || call.Name != "search_properties" {
		return model.FunctionResult{}, false
	}
	res, err := p.limiter.Check(ctx, conv.TenantID, conv.ChannelAddress, ratelimit.PolicySearch)
	if err != nil {
		log.Warn("search rate limiter unavailable, admitting", zap.Error(err))
		return model.FunctionResult{}, false
	}
	if res.Allowed {
		return model.FunctionResult{}, false
	}
	log.Info("search call rate limited", zap.Time("reset_at", res.ResetAt))
	metrics.RateLimitRejections.WithLabelValues(conv.TenantID, ratelimit.PolicySearch.Name).Inc()
	return model.FunctionResult{
		FunctionName: call.Name,
		Error:        "rate_limited",
		Message:      searchLimitedReply,
	}, true
}

func (p *Pipeline) publishEvent(ctx context.Context, tenantID, conversationID string, typ model.EventType, reason string) {
	if p.events == nil {
		return
	}
	event := &model.PipelineEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Type:           typ,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
	if err := p.events.PublishEvent(ctx, event); err != nil {
		p.logger.Warn("event publish failed", zap.String("type", string(typ)), zap.Error(err))
	}
}

func validateRequest(tenantID string, req *model.ProcessMessageRequest) error {
	if strings.TrimSpace(tenantID) == "" {
		return &model.ValidationError{Field: "tenant_id", Reason: "missing"}
	}
	if strings.TrimSpace(req.ChannelAddress) == "" {
		return &model.ValidationError{Field: "channel_address", Reason: "missing"}
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return &model.ValidationError{Field: "text", Reason: "empty"}
	}
	if len(req.Text) > maxMessageLen {
		return &model.ValidationError{Field: "text", Reason: "too long"}
	}
	return nil
}
