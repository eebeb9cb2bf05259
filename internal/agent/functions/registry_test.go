package functions

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
)

type fakeHandler struct {
	name       string
	idempotent bool
	schema     *ParamSchema
	execute    func(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error)
	calls      int
}

func (h *fakeHandler) Name() string             { return h.name }
func (h *fakeHandler) Description() string      { return "fake" }
func (h *fakeHandler) Parameters() *ParamSchema { return h.schema }
func (h *fakeHandler) Idempotent() bool         { return h.idempotent }
func (h *fakeHandler) Execute(ctx context.Context, scope Scope, args map[string]any) (map[string]any, string, error) {
	h.calls++
	return h.execute(ctx, scope, args)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewDevelopment()
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	return log
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegistryUnknownFunction(t *testing.T) {
	r := NewRegistry(nil, time.Second, testLogger(t))

	res := r.Execute(context.Background(), Scope{TenantID: "t"}, model.FunctionCall{Name: "nope"})
	if res.Success {
		t.Fatal("unknown function must not succeed")
	}
	if res.Error != "unknown_function" {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry(nil, time.Second, testLogger(t))
	h := &fakeHandler{
		name: "needs_id",
		schema: &ParamSchema{
			Type:       "object",
			Properties: map[string]*ParamSchema{"id": {Type: "string"}},
			Required:   []string{"id"},
		},
		execute: func(context.Context, Scope, map[string]any) (map[string]any, string, error) {
			return nil, "ok", nil
		},
	}
	r.Register(h)

	res := r.Execute(context.Background(), Scope{TenantID: "t"}, model.FunctionCall{
		Name:      "needs_id",
		Arguments: map[string]any{},
	})
	if res.Success {
		t.Fatal("missing required arg must fail")
	}
	if res.Error != "validation" {
		t.Fatalf("error = %q", res.Error)
	}
	if h.calls != 0 {
		t.Fatal("handler must not run on validation failure")
	}
}

func TestRegistryExecuteAllKeepsOrderAndIsolatesFailures(t *testing.T) {
	r := NewRegistry(nil, time.Second, testLogger(t))
	r.Register(&fakeHandler{
		name: "ok",
		execute: func(context.Context, Scope, map[string]any) (map[string]any, string, error) {
			return map[string]any{"v": 1}, "tudo certo", nil
		},
	})
	r.Register(&fakeHandler{
		name: "boom",
		execute: func(context.Context, Scope, map[string]any) (map[string]any, string, error) {
			panic("kaput")
		},
	})
	r.Register(&fakeHandler{
		name: "fails",
		execute: func(context.Context, Scope, map[string]any) (map[string]any, string, error) {
			return nil, "", errors.New("nope")
		},
	})

	calls := []model.FunctionCall{{Name: "boom"}, {Name: "fails"}, {Name: "ok"}}
	results := r.ExecuteAll(context.Background(), Scope{TenantID: "t"}, calls)

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].FunctionName != "boom" || results[0].Error != "internal" {
		t.Fatalf("panic result = %+v", results[0])
	}
	if results[1].FunctionName != "fails" || results[1].Success {
		t.Fatalf("failed result = %+v", results[1])
	}
	if !results[2].Success || results[2].Message != "tudo certo" {
		t.Fatalf("ok result = %+v", results[2])
	}
}

func TestRegistryIdempotentReplay(t *testing.T) {
	log := testLogger(t)
	idem := NewIdempotencyStore(testStore(t), time.Hour, log)
	r := NewRegistry(idem, time.Second, log)

	h := &fakeHandler{
		name:       "charge",
		idempotent: true,
		execute: func(context.Context, Scope, map[string]any) (map[string]any, string, error) {
			return map[string]any{"charge_id": "c1"}, "cobrado", nil
		},
	}
	r.Register(h)

	scope := Scope{TenantID: "t", ConversationID: "conv"}
	call := model.FunctionCall{Name: "charge", Arguments: map[string]any{"amount": 10.0}}

	first := r.Execute(context.Background(), scope, call)
	second := r.Execute(context.Background(), scope, call)

	if !first.Success || !second.Success {
		t.Fatalf("results: %+v / %+v", first, second)
	}
	if h.calls != 1 {
		t.Fatalf("handler ran %d times, want 1", h.calls)
	}
	if second.Data["charge_id"] != "c1" {
		t.Fatalf("replayed data = %+v", second.Data)
	}

	// Different arguments are a different call.
	other := model.FunctionCall{Name: "charge", Arguments: map[string]any{"amount": 20.0}}
	r.Execute(context.Background(), scope, other)
	if h.calls != 2 {
		t.Fatalf("handler ran %d times, want 2", h.calls)
	}
}

func TestRegistryFailedCallNotRecorded(t *testing.T) {
	log := testLogger(t)
	idem := NewIdempotencyStore(testStore(t), time.Hour, log)
	r := NewRegistry(idem, time.Second, log)

	fail := true
	h := &fakeHandler{
		name:       "flaky",
		idempotent: true,
		execute: func(context.Context, Scope, map[string]any) (map[string]any, string, error) {
			if fail {
				return nil, "", errors.New("provider down")
			}
			return map[string]any{"ok": true}, "feito", nil
		},
	}
	r.Register(h)

	scope := Scope{TenantID: "t", ConversationID: "conv"}
	call := model.FunctionCall{Name: "flaky"}

	if res := r.Execute(context.Background(), scope, call); res.Success {
		t.Fatal("first call should fail")
	}
	fail = false
	if res := r.Execute(context.Background(), scope, call); !res.Success {
		t.Fatalf("retry should run the handler: %+v", res)
	}
	if h.calls != 2 {
		t.Fatalf("handler ran %d times, want 2", h.calls)
	}
}

func TestRegistryTenantIsolation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Seed a property for tenant-a, then ask for it as tenant-b. The id is
	// valid; the tenant prefix makes the lookup miss.
	prop := model.Property{ID: "p1", TenantID: "tenant-a", Title: "Casa da Serra", Active: true}
	if err := s.Create(ctx, "tenant-a", store.CollectionProperties, prop.ID, prop); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	r := NewRegistry(nil, time.Second, testLogger(t))
	r.Register(NewGetPropertyDetails(s))

	res := r.Execute(ctx, Scope{TenantID: "tenant-b"}, model.FunctionCall{
		Name:      "get_property_details",
		Arguments: map[string]any{"property_id": "p1"},
	})
	if res.Success {
		t.Fatal("cross-tenant lookup must fail")
	}
}

func TestTruncateOutputCapsLists(t *testing.T) {
	items := make([]map[string]any, 25)
	for i := range items {
		items[i] = map[string]any{"i": i}
	}
	out := truncateOutput(map[string]any{"properties": items})

	kept, _ := out["properties"].([]map[string]any)
	if len(kept) != maxListItems {
		t.Fatalf("kept = %d, want %d", len(kept), maxListItems)
	}
	if out["_truncated"] != true || out["_original_count"] != 25 {
		t.Fatalf("truncation markers = %+v", out)
	}
}
