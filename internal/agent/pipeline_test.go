package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reserva-ai/commerce-platform/internal/agent/functions"
	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/planner"
	"github.com/reserva-ai/commerce-platform/internal/ratelimit"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

type fakePlanner struct {
	mu    sync.Mutex
	plan  *planner.Plan
	err   error
	seen  []*planner.PlanRequest
}

func (p *fakePlanner) Plan(ctx context.Context, req *planner.PlanRequest) (*planner.Plan, error) {
	p.mu.Lock()
	p.seen = append(p.seen, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.plan, nil
}

type countingHandler struct {
	mu    sync.Mutex
	calls int
	data  map[string]any
}

func (h *countingHandler) Name() string                      { return "search_properties" }
func (h *countingHandler) Description() string               { return "busca" }
func (h *countingHandler) Parameters() *functions.ParamSchema { return nil }
func (h *countingHandler) Idempotent() bool                  { return false }
func (h *countingHandler) Execute(ctx context.Context, scope functions.Scope, args map[string]any) (map[string]any, string, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.data, "", nil
}

type testEnv struct {
	pipeline *Pipeline
	store    store.Store
	handler  *countingHandler
}

func newTestEnv(t *testing.T, pl planner.Planner, opts Options) *testEnv {
	t.Helper()
	log, err := logger.NewDevelopment()
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h := &countingHandler{data: map[string]any{
		"total": 1,
		"properties": []map[string]any{
			{"title": "Chalé da Montanha", "city": "Gramado", "nightly_rate": 420.0},
		},
		"filters": map[string]any{"city": "Gramado"},
	}}

	reg := functions.NewRegistry(nil, time.Second, log)
	reg.Register(h)

	cs := NewConversationStore(s)
	p := NewPipeline(cs, pl, reg, &LogSinkStub{log: log}, log, opts)
	return &testEnv{pipeline: p, store: s, handler: h}
}

// LogSinkStub swallows outbound deliveries.
type LogSinkStub struct {
	log *logger.Logger
	mu  sync.Mutex
	n   int
}

func (s *LogSinkStub) Deliver(ctx context.Context, msg *model.OutboundMessage) error {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
	return nil
}

func TestProcessMessageValidation(t *testing.T) {
	env := newTestEnv(t, &fakePlanner{plan: &planner.Plan{Reply: "oi"}}, Options{})
	ctx := context.Background()

	var validationErr *model.ValidationError

	_, err := env.pipeline.ProcessMessage(ctx, "", &model.ProcessMessageRequest{ChannelAddress: "a", Text: "oi"})
	if !errors.As(err, &validationErr) {
		t.Fatalf("empty tenant: err = %v", err)
	}

	_, err = env.pipeline.ProcessMessage(ctx, "t", &model.ProcessMessageRequest{ChannelAddress: "a", Text: "   "})
	if !errors.As(err, &validationErr) {
		t.Fatalf("blank text: err = %v", err)
	}

	_, err = env.pipeline.ProcessMessage(ctx, "t", &model.ProcessMessageRequest{Text: "oi"})
	if !errors.As(err, &validationErr) {
		t.Fatalf("missing address: err = %v", err)
	}
}

func TestProcessMessageHappyPath(t *testing.T) {
	pl := &fakePlanner{plan: &planner.Plan{
		Reply: "Deixa eu ver o que temos!",
		Calls: []model.FunctionCall{{Name: "search_properties", Arguments: map[string]any{"city": "Gramado"}}},
	}}
	env := newTestEnv(t, pl, Options{})
	ctx := context.Background()

	resp, err := env.pipeline.ProcessMessage(ctx, "tenant-a", &model.ProcessMessageRequest{
		ChannelAddress: "+5511999990000",
		Text:           "quero uma casa em Gramado",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.Contains(resp.Reply, "Chalé da Montanha") {
		t.Fatalf("reply = %q", resp.Reply)
	}
	if len(resp.FunctionResults) != 1 || !resp.FunctionResults[0].Success {
		t.Fatalf("results = %+v", resp.FunctionResults)
	}

	// The turn persisted both sides of the exchange.
	cs := env.pipeline.Conversations()
	msgs, err := cs.RecentMessages(ctx, "tenant-a", resp.ConversationID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].From != model.SenderClient || msgs[1].From != model.SenderAgent {
		t.Fatalf("senders = %v, %v", msgs[0].From, msgs[1].From)
	}

	// The search filters landed in the context.
	conv, err := cs.Get(ctx, "tenant-a", resp.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Context.CurrentSearchFilters["city"] != "Gramado" {
		t.Fatalf("context filters = %+v", conv.Context.CurrentSearchFilters)
	}
}

func TestProcessMessagePlannerDegrades(t *testing.T) {
	pl := &fakePlanner{err: errors.New("upstream 500")}
	env := newTestEnv(t, pl, Options{})
	ctx := context.Background()

	resp, err := env.pipeline.ProcessMessage(ctx, "t", &model.ProcessMessageRequest{
		ChannelAddress: "+5511888880000",
		Text:           "oi",
	})
	if err != nil {
		t.Fatalf("a planner failure must not fail the turn: %v", err)
	}
	if resp.Reply != plannerDownReply {
		t.Fatalf("reply = %q", resp.Reply)
	}

	// Inbound and the apology are both on the log; context stayed empty.
	cs := env.pipeline.Conversations()
	msgs, err := cs.RecentMessages(ctx, "t", resp.ConversationID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	conv, _ := cs.Get(ctx, "t", resp.ConversationID)
	if conv.Context.CurrentSearchFilters != nil {
		t.Fatalf("context should be untouched: %+v", conv.Context)
	}
}

func TestProcessMessageSuppressesRepeatedCalls(t *testing.T) {
	pl := &fakePlanner{plan: &planner.Plan{
		Reply: "Procurando...",
		Calls: []model.FunctionCall{{Name: "search_properties", Arguments: map[string]any{"city": "Gramado"}}},
	}}
	env := newTestEnv(t, pl, Options{GuardWindow: time.Minute})
	ctx := context.Background()
	req := &model.ProcessMessageRequest{ChannelAddress: "+5511777770000", Text: "casas em gramado"}

	first, err := env.pipeline.ProcessMessage(ctx, "t", req)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := env.pipeline.ProcessMessage(ctx, "t", req)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}

	if !first.FunctionResults[0].Success {
		t.Fatalf("first result = %+v", first.FunctionResults[0])
	}
	if !second.FunctionResults[0].AlreadyHandled {
		t.Fatalf("second result = %+v", second.FunctionResults[0])
	}
	if env.handler.calls != 1 {
		t.Fatalf("handler ran %d times, want 1", env.handler.calls)
	}
	if !strings.Contains(second.Reply, "já foi atendida") {
		t.Fatalf("second reply = %q", second.Reply)
	}
}

func TestProcessMessageRateLimited(t *testing.T) {
	pl := &fakePlanner{plan: &planner.Plan{Reply: "oi"}}
	limiter := ratelimit.NewMemoryLimiter()
	env := newTestEnv(t, pl, Options{Limiter: limiter})
	ctx := context.Background()
	req := &model.ProcessMessageRequest{ChannelAddress: "+5511666660000", Text: "oi"}

	for i := 0; i < ratelimit.PolicyInboundMessage.MaxRequests; i++ {
		if _, err := env.pipeline.ProcessMessage(ctx, "t", req); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	_, err := env.pipeline.ProcessMessage(ctx, "t", req)
	var rateErr *model.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rateErr.ResetAt.IsZero() {
		t.Fatal("reset time must be set")
	}
}

func TestProcessMessageConcurrentFirstTurns(t *testing.T) {
	pl := &fakePlanner{plan: &planner.Plan{Reply: "oi!"}}
	env := newTestEnv(t, pl, Options{})
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	resps := make([]*model.ProcessMessageResponse, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := env.pipeline.ProcessMessage(ctx, "t", &model.ProcessMessageRequest{
				ChannelAddress: "+5511555550000",
				Text:           "oi",
			})
			if err != nil {
				t.Errorf("turn %d: %v", i, err)
				return
			}
			resps[i] = resp
		}(i)
	}
	wg.Wait()

	// First contact from one address converges on one client and one
	// conversation no matter how many turns race.
	for i := 1; i < n; i++ {
		if resps[i] == nil || resps[0] == nil {
			t.Fatal("missing responses")
		}
		if resps[i].ClientID != resps[0].ClientID {
			t.Fatalf("client ids diverge: %s vs %s", resps[i].ClientID, resps[0].ClientID)
		}
		if resps[i].ConversationID != resps[0].ConversationID {
			t.Fatalf("conversation ids diverge: %s vs %s", resps[i].ConversationID, resps[0].ConversationID)
		}
	}

	msgs, err := env.pipeline.Conversations().RecentMessages(ctx, "t", resps[0].ConversationID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2*n {
		t.Fatalf("messages = %d, want %d", len(msgs), 2*n)
	}
}

func TestAssembleTranscriptWindow(t *testing.T) {
	pl := &fakePlanner{plan: &planner.Plan{Reply: "ok"}}
	env := newTestEnv(t, pl, Options{})
	ctx := context.Background()
	req := &model.ProcessMessageRequest{ChannelAddress: "+5511444440000", Text: "mensagem"}

	// Enough turns that the transcript must be clipped to the window.
	for i := 0; i < 8; i++ {
		if _, err := env.pipeline.ProcessMessage(ctx, "t", req); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	last := pl.seen[len(pl.seen)-1]
	if len(last.Transcript) != transcriptWindow {
		t.Fatalf("transcript = %d, want %d", len(last.Transcript), transcriptWindow)
	}
	// The new inbound text is carried separately, never duplicated in the
	// transcript tail.
	if last.Transcript[len(last.Transcript)-1].Role != "assistant" {
		t.Fatalf("transcript tail role = %s", last.Transcript[len(last.Transcript)-1].Role)
	}
	if last.Message != "mensagem" {
		t.Fatalf("message = %q", last.Message)
	}
}

// An accepted turn keeps running when the transport drops: the caller's
// context may already be cancelled, yet the turn must complete and persist
// both sides of the exchange instead of leaving half-written state behind.
func TestProcessMessageSurvivesDisconnect(t *testing.T) {
	pl := &fakePlanner{plan: &planner.Plan{
		Reply: "Deixa eu ver!",
		Calls: []model.FunctionCall{{Name: "search_properties", Arguments: map[string]any{"city": "Gramado"}}},
	}}
	env := newTestEnv(t, pl, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := env.pipeline.ProcessMessage(ctx, "t", &model.ProcessMessageRequest{
		ChannelAddress: "+5511333330000",
		Text:           "casas em gramado",
	})
	if err != nil {
		t.Fatalf("turn aborted on disconnected caller: %v", err)
	}
	if resp.Reply == "" {
		t.Fatal("reply must not be empty")
	}
	if len(resp.FunctionResults) != 1 || !resp.FunctionResults[0].Success {
		t.Fatalf("results = %+v", resp.FunctionResults)
	}

	msgs, err := env.pipeline.Conversations().RecentMessages(context.Background(), "t", resp.ConversationID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
}

func TestProcessMessageSearchRateLimited(t *testing.T) {
	saved := ratelimit.PolicySearch
	ratelimit.PolicySearch = ratelimit.Policy{Name: saved.Name, Window: time.Minute, MaxRequests: 1}
	defer func() { ratelimit.PolicySearch = saved }()

	pl := &fakePlanner{plan: &planner.Plan{
		Reply: "Procurando...",
		Calls: []model.FunctionCall{{Name: "search_properties", Arguments: map[string]any{"city": "Gramado"}}},
	}}
	env := newTestEnv(t, pl, Options{Limiter: ratelimit.NewMemoryLimiter()})
	ctx := context.Background()
	req := &model.ProcessMessageRequest{ChannelAddress: "+5511222220000", Text: "casas em gramado"}

	first, err := env.pipeline.ProcessMessage(ctx, "t", req)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if !first.FunctionResults[0].Success {
		t.Fatalf("first result = %+v", first.FunctionResults[0])
	}

	// Different arguments so the duplicate guard does not swallow the call
	// before the search budget is consulted.
	pl.plan = &planner.Plan{
		Reply: "Procurando...",
		Calls: []model.FunctionCall{{Name: "search_properties", Arguments: map[string]any{"city": "Canela"}}},
	}
	second, err := env.pipeline.ProcessMessage(ctx, "t", req)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	res := second.FunctionResults[0]
	if res.Success || res.Error != "rate_limited" {
		t.Fatalf("second result = %+v", res)
	}
	if env.handler.calls != 1 {
		t.Fatalf("handler ran %d times, want 1", env.handler.calls)
	}
	if !strings.Contains(second.Reply, "pausa") {
		t.Fatalf("second reply = %q", second.Reply)
	}
}
