package agent

import (
	"sync"
	"testing"
	"time"
)

func TestGuardSuppressesWithinWindow(t *testing.T) {
	g := NewDuplicateGuard(time.Minute)

	if !g.Reserve("conv-1", "fp-a") {
		t.Fatal("first reservation should pass")
	}
	if g.Reserve("conv-1", "fp-a") {
		t.Fatal("repeat within window should be suppressed")
	}
	// Different fingerprint or conversation passes.
	if !g.Reserve("conv-1", "fp-b") {
		t.Fatal("different fingerprint should pass")
	}
	if !g.Reserve("conv-2", "fp-a") {
		t.Fatal("different conversation should pass")
	}
}

func TestGuardExpires(t *testing.T) {
	g := NewDuplicateGuard(time.Minute)
	current := time.Now()
	g.now = func() time.Time { return current }

	if !g.Reserve("c", "fp") {
		t.Fatal("first reservation should pass")
	}
	current = current.Add(2 * time.Minute)
	if !g.Reserve("c", "fp") {
		t.Fatal("reservation after window should pass")
	}
}

func TestGuardForgetAllowsRetry(t *testing.T) {
	g := NewDuplicateGuard(time.Minute)

	if !g.Reserve("c", "fp") {
		t.Fatal("first reservation should pass")
	}
	g.Forget("c", "fp")
	if !g.Reserve("c", "fp") {
		t.Fatal("retry after forget should pass")
	}
}

func TestGuardConcurrentSingleWinner(t *testing.T) {
	g := NewDuplicateGuard(time.Minute)

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Reserve("c", "fp") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("winners = %d, want exactly 1", count)
	}
}

func TestGuardCleanup(t *testing.T) {
	g := NewDuplicateGuard(time.Minute)
	current := time.Now()
	g.now = func() time.Time { return current }

	g.Reserve("c", "old")
	current = current.Add(90 * time.Second)
	g.Reserve("c", "fresh")

	if removed := g.Cleanup(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}
