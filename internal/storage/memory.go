package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// memoryEntry represents a single entry in the memory store with expiration support.
type memoryEntry struct {
	value     string
	expiresAt *time.Time
}

// MemoryStore is an in-memory implementation of Store. It is used in tests
// and single-instance development setups; production deployments use Redis.
type MemoryStore struct {
	mu    sync.Mutex
	store map[string]*memoryEntry
	// cleanupInterval controls how often expired entries are cleaned up.
	cleanupInterval time.Duration
	// stopCleanup is used to signal the cleanup goroutine to stop.
	stopCleanup chan struct{}
	// done signals that the cleanup goroutine has stopped.
	done chan struct{}
}

// MemoryOptions configures an in-memory store instance.
type MemoryOptions struct {
	CleanupInterval time.Duration
}

// NewMemoryStore creates a new in-memory store and starts its cleanup loop.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	cleanupInterval := time.Minute
	if opts.CleanupInterval != 0 {
		cleanupInterval = opts.CleanupInterval
	}

	ms := &MemoryStore{
		store:           make(map[string]*memoryEntry),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		done:            make(chan struct{}),
	}

	go ms.cleanupExpiredEntries()

	return ms
}

func (ms *MemoryStore) expired(entry *memoryEntry) bool {
	return entry.expiresAt != nil && time.Now().After(*entry.expiresAt)
}

// Get retrieves a value from memory by key.
func (ms *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.store[key]
	if !exists || ms.expired(entry) {
		return "", ErrNotFound
	}

	return entry.value, nil
}

// Set stores a value in memory. A ttl of zero means no expiration.
func (ms *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry := &memoryEntry{value: value}
	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		entry.expiresAt = &expiresAt
	}

	ms.store[key] = entry

	return nil
}

// GetDel atomically retrieves and deletes the value stored at key. Exactly
// one of any number of concurrent callers observes the value.
func (ms *MemoryStore) GetDel(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.store[key]
	if !exists || ms.expired(entry) {
		return "", ErrNotFound
	}

	delete(ms.store, key)

	return entry.value, nil
}

// Delete removes a key from the store. Deleting a missing key is not an error.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.store, key)

	return nil
}

// Incr increments the integer value stored at key by 1, initializing it to 1
// if the key does not exist or has expired. The ttl is only applied on key
// creation.
func (ms *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var count int64
	var expiresAt *time.Time

	if entry, exists := ms.store[key]; exists && !ms.expired(entry) {
		num, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at key %s is not a valid integer: %w", key, err)
		}
		count = num
		expiresAt = entry.expiresAt
	} else if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	count++

	ms.store[key] = &memoryEntry{
		value:     strconv.FormatInt(count, 10),
		expiresAt: expiresAt,
	}

	return count, nil
}

// TTL returns the remaining time to live for a key.
func (ms *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, exists := ms.store[key]
	if !exists || ms.expired(entry) {
		return 0, ErrNotFound
	}
	if entry.expiresAt == nil {
		return 0, nil
	}

	return time.Until(*entry.expiresAt), nil
}

// Ping always succeeds for the in-memory store.
func (ms *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// cleanupExpiredEntries runs periodically to remove expired entries.
// This prevents memory leaks from entries with TTL that are never accessed.
func (ms *MemoryStore) cleanupExpiredEntries() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()
	defer close(ms.done)

	for {
		select {
		case <-ms.stopCleanup:
			return
		case <-ticker.C:
			ms.removeExpiredEntries()
		}
	}
}

// removeExpiredEntries removes all expired entries from the store.
func (ms *MemoryStore) removeExpiredEntries() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for key, entry := range ms.store {
		if entry.expiresAt != nil && now.After(*entry.expiresAt) {
			delete(ms.store, key)
		}
	}
}

// Close gracefully shuts down the store by stopping the cleanup goroutine.
func (ms *MemoryStore) Close() error {
	close(ms.stopCleanup)
	<-ms.done
	return nil
}
