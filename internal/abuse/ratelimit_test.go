package abuse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

func newStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore(storage.MemoryOptions{CleanupInterval: time.Hour})
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRateLimiterCeiling(t *testing.T) {
	store := newStore(t)
	rl := NewRateLimiter(store, 5, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := rl.Check(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("attempt %d should pass, got %v", i, err)
		}
	}

	if err := rl.Check(ctx, "1.2.3.4"); !errors.Is(err, faucet.ErrRateLimited) {
		t.Errorf("attempt 6 should be rate limited, got %v", err)
	}

	// A different IP has its own budget.
	if err := rl.Check(ctx, "5.6.7.8"); err != nil {
		t.Errorf("different ip should not be limited, got %v", err)
	}
}

func TestRateLimiterRemaining(t *testing.T) {
	store := newStore(t)
	rl := NewRateLimiter(store, 5, time.Minute)
	ctx := context.Background()

	if got := rl.Remaining(ctx, "1.2.3.4"); got != 0 {
		t.Errorf("expected zero before any attempt, got %v", got)
	}

	if err := rl.Check(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := rl.Remaining(ctx, "1.2.3.4")
	if got <= 0 || got > time.Minute {
		t.Errorf("expected a remainder within the window, got %v", got)
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	store := newStore(t)
	rl := NewRateLimiter(store, 1, 30*time.Millisecond)
	ctx := context.Background()

	if err := rl.Check(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rl.Check(ctx, "1.2.3.4"); !errors.Is(err, faucet.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if err := rl.Check(ctx, "1.2.3.4"); err != nil {
		t.Errorf("attempt after window expiry should pass, got %v", err)
	}
}
