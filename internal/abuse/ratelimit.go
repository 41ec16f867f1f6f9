// Package abuse bounds claim frequency independent of session validity: a
// fixed-window attempt counter per IP, and long-window cooldown records per
// IP and per address. Both live in the shared store, so every instance sees
// the same counters.
package abuse

import (
	"context"
	"fmt"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

const keyRateLimit = "faucet:ratelimit:"

// RateLimiter counts claim attempts (not successes) per IP within a fixed
// window. The window starts at the first attempt; the store's TTL retires it.
type RateLimiter struct {
	store  storage.Store
	max    int64
	window time.Duration
}

func NewRateLimiter(store storage.Store, max int64, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, max: max, window: window}
}

// Check records one attempt for ip and rejects with faucet.ErrRateLimited
// once the window ceiling is exceeded. The attempt is counted before the
// decision, so rejected requests still consume budget.
func (rl *RateLimiter) Check(ctx context.Context, ip string) error {
	count, err := rl.store.Incr(ctx, keyRateLimit+ip, rl.window)
	if err != nil {
		return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	if count > rl.max {
		return faucet.ErrRateLimited
	}

	return nil
}

// Remaining reports how long the current window for ip has left. Zero when no
// window is active or the store cannot say; the value is a hint, not a gate.
func (rl *RateLimiter) Remaining(ctx context.Context, ip string) time.Duration {
	ttl, err := rl.store.TTL(ctx, keyRateLimit+ip)
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
