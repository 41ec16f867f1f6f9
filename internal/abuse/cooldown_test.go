package abuse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
)

func TestCooldownBlocksIPAndAddress(t *testing.T) {
	store := newStore(t)
	cd := NewCooldown(store, time.Hour)
	ctx := context.Background()

	if err := cd.Check(ctx, "1.2.3.4", "ccx7A"); err != nil {
		t.Fatalf("no cooldown should be active yet, got %v", err)
	}

	if err := cd.Commit(ctx, "1.2.3.4", "ccx7A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same address from a different IP.
	if err := cd.Check(ctx, "9.9.9.9", "ccx7A"); !errors.Is(err, faucet.ErrCooldownActive) {
		t.Errorf("address cooldown should block a different ip, got %v", err)
	}

	// Same IP with a different address.
	if err := cd.Check(ctx, "1.2.3.4", "ccx7B"); !errors.Is(err, faucet.ErrCooldownActive) {
		t.Errorf("ip cooldown should block a different address, got %v", err)
	}

	// Unrelated IP and address are unaffected.
	if err := cd.Check(ctx, "9.9.9.9", "ccx7B"); err != nil {
		t.Errorf("unrelated ip/address should not be blocked, got %v", err)
	}
}

func TestCooldownRemaining(t *testing.T) {
	store := newStore(t)
	cd := NewCooldown(store, time.Hour)
	ctx := context.Background()

	if got := cd.Remaining(ctx, "1.2.3.4", "ccx7A"); got != 0 {
		t.Errorf("expected zero before any payout, got %v", got)
	}

	if err := cd.Commit(ctx, "1.2.3.4", "ccx7A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := cd.Remaining(ctx, "1.2.3.4", "ccx7A")
	if got <= 0 || got > time.Hour {
		t.Errorf("expected a remainder within the window, got %v", got)
	}

	// Either record alone carries the remainder.
	if got := cd.Remaining(ctx, "9.9.9.9", "ccx7A"); got <= 0 {
		t.Errorf("address record alone should report a remainder, got %v", got)
	}
	if got := cd.Remaining(ctx, "1.2.3.4", "ccx7B"); got <= 0 {
		t.Errorf("ip record alone should report a remainder, got %v", got)
	}
}

func TestCooldownExpiry(t *testing.T) {
	store := newStore(t)
	cd := NewCooldown(store, 30*time.Millisecond)
	ctx := context.Background()

	if err := cd.Commit(ctx, "1.2.3.4", "ccx7A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if err := cd.Check(ctx, "1.2.3.4", "ccx7A"); err != nil {
		t.Errorf("cooldown should have expired, got %v", err)
	}
}
