package abuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

const (
	keyCooldownIP      = "faucet:cooldown:ip:"
	keyCooldownAddress = "faucet:cooldown:addr:"
)

// Cooldown tracks successful payouts per IP and per address. The existence
// of an unexpired record is the sole signal; the stored value is only the
// payout timestamp, kept for operators reading the store directly.
type Cooldown struct {
	store  storage.Store
	window time.Duration
}

func NewCooldown(store storage.Store, window time.Duration) *Cooldown {
	return &Cooldown{store: store, window: window}
}

// Check rejects with faucet.ErrCooldownActive when either the IP or the
// address has an unexpired cooldown record.
func (cd *Cooldown) Check(ctx context.Context, ip, address string) error {
	for _, key := range []string{keyCooldownIP + ip, keyCooldownAddress + address} {
		_, err := cd.store.Get(ctx, key)
		if err == nil {
			return faucet.ErrCooldownActive
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Remaining reports the longest unexpired cooldown among the ip and address
// records. Zero when neither is active or the store cannot say.
func (cd *Cooldown) Remaining(ctx context.Context, ip, address string) time.Duration {
	var remaining time.Duration
	for _, key := range []string{keyCooldownIP + ip, keyCooldownAddress + address} {
		ttl, err := cd.store.TTL(ctx, key)
		if err == nil && ttl > remaining {
			remaining = ttl
		}
	}
	return remaining
}

// Commit writes both cooldown records. Called only after a successful
// disbursement; a failed disbursement must not start a cooldown.
func (cd *Cooldown) Commit(ctx context.Context, ip, address string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, key := range []string{keyCooldownIP + ip, keyCooldownAddress + address} {
		if err := cd.store.Set(ctx, key, now, cd.window); err != nil {
			return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
		}
	}
	return nil
}
