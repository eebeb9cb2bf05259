package ratelimit

import (
	"context"
	"testing"
	"time"
)

// windowAligned is a fixed instant sitting exactly on a minute boundary, so
// Truncate keeps test arithmetic exact.
var windowAligned = time.Unix(999960, 0)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Name: "test", Window: time.Minute, MaxRequests: 3}
	ctx := context.Background()
	l.now = func() time.Time { return windowAligned }

	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "tenant-a", "+5511999990000", policy)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("check %d: expected allowed", i)
		}
		if want := 3 - i - 1; res.Remaining != want {
			t.Fatalf("check %d: remaining = %d, want %d", i, res.Remaining, want)
		}
	}

	res, err := l.Check(ctx, "tenant-a", "+5511999990000", policy)
	if err != nil {
		t.Fatalf("check over limit: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected rejection after limit")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Name: "test", Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	if res, _ := l.Check(ctx, "tenant-a", "addr-1", policy); !res.Allowed {
		t.Fatal("first key should be allowed")
	}
	if res, _ := l.Check(ctx, "tenant-a", "addr-1", policy); res.Allowed {
		t.Fatal("first key should now be rejected")
	}
	// Another identifier and another tenant keep separate budgets.
	if res, _ := l.Check(ctx, "tenant-a", "addr-2", policy); !res.Allowed {
		t.Fatal("second identifier should be allowed")
	}
	if res, _ := l.Check(ctx, "tenant-b", "addr-1", policy); !res.Allowed {
		t.Fatal("other tenant should be allowed")
	}
}

func TestMemoryLimiterWindowSlides(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Name: "test", Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	current := windowAligned
	l.now = func() time.Time { return current }

	if res, _ := l.Check(ctx, "t", "a", policy); !res.Allowed {
		t.Fatal("first check should be allowed")
	}
	res, _ := l.Check(ctx, "t", "a", policy)
	if res.Allowed {
		t.Fatal("second check should be rejected")
	}
	if want := windowAligned.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Fatalf("reset at = %v, want %v", res.ResetAt, want)
	}

	// Just past the boundary most of the old window still weighs, but less
	// than a full budget, so one request squeezes through.
	current = windowAligned.Add(time.Minute + time.Second)
	if res, _ := l.Check(ctx, "t", "a", policy); !res.Allowed {
		t.Fatal("check after window should be allowed")
	}
	// After a full idle window the budget is whole again.
	current = windowAligned.Add(3 * time.Minute)
	if res, _ := l.Check(ctx, "t", "a", policy); !res.Allowed {
		t.Fatal("check after idle window should be allowed")
	}
}

// A sender that exhausts the budget at the end of one window must not get a
// second full budget right after the boundary.
func TestMemoryLimiterNoBoundaryBurst(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Name: "test", Window: time.Minute, MaxRequests: 10}
	ctx := context.Background()

	current := windowAligned
	l.now = func() time.Time { return current }

	for i := 0; i < 10; i++ {
		if res, _ := l.Check(ctx, "t", "a", policy); !res.Allowed {
			t.Fatalf("check %d: expected allowed", i)
		}
	}
	if res, _ := l.Check(ctx, "t", "a", policy); res.Allowed {
		t.Fatal("expected rejection at the limit")
	}

	// At the boundary instant the whole previous window still counts.
	current = windowAligned.Add(time.Minute)
	if res, _ := l.Check(ctx, "t", "a", policy); res.Allowed {
		t.Fatal("expected rejection right at the boundary")
	}

	// Halfway into the next window half the old count has slid out, so only
	// half the budget is back.
	current = windowAligned.Add(90 * time.Second)
	allowed := 0
	for i := 0; i < 10; i++ {
		if res, _ := l.Check(ctx, "t", "a", policy); res.Allowed {
			allowed++
		}
	}
	if allowed != 5 {
		t.Fatalf("allowed mid-window = %d, want 5", allowed)
	}
}

func TestMemoryLimiterCleanup(t *testing.T) {
	l := NewMemoryLimiter()
	policy := Policy{Name: "test", Window: time.Minute, MaxRequests: 5}
	ctx := context.Background()

	current := windowAligned
	l.now = func() time.Time { return current }

	l.Check(ctx, "t", "old", policy)
	current = current.Add(20 * time.Minute)
	l.Check(ctx, "t", "fresh", policy)

	l.Cleanup(10 * time.Minute)

	if len(l.buckets) != 1 {
		t.Fatalf("buckets = %d, want 1", len(l.buckets))
	}
}
