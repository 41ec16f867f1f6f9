package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get, GetDel and TTL when the key does not exist
// or has already expired.
var ErrNotFound = errors.New("storage: key not found")

// Store is the shared TTL key-value store every faucet instance coordinates
// through. Single-key operations are assumed atomic on the backend; no
// multi-key transaction is assumed anywhere in the codebase.
//
// GetDel is the single-flight primitive: it atomically reads and removes a
// key, so exactly one of N concurrent callers observes the value. The claim
// path relies on it to guarantee at most one payout per session.
type Store interface {
	// Get retrieves the value stored at key.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// GetDel atomically retrieves and deletes the value stored at key.
	GetDel(ctx context.Context, key string) (string, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr increments the integer value at key by 1, initializing it to 1 if
	// the key does not exist. The ttl is only applied on key creation, so the
	// counter window is fixed from the first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining time to live for a key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
