package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// KeyValueEntry represents the persistent key-value table backing the
// database store. It mirrors the contract Redis provides: a string value and
// an optional expiry.
type KeyValueEntry struct {
	bun.BaseModel `bun:"table:faucet_kv"`

	Key       string     `bun:",pk,type:varchar(255)"`
	Value     string     `bun:"value,notnull"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
}

// DatabaseOptions configures a SQL-backed store instance.
type DatabaseOptions struct {
	// Provider selects the SQL dialect: "postgres" or "sqlite".
	Provider string
	// URL is the driver connection string.
	URL string
	// CleanupInterval controls how often expired rows are swept.
	CleanupInterval time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// DatabaseStore implements Store on a SQL database via Bun. It exists for
// deployments without Redis; the contract is identical, with expiry enforced
// on read and a background sweep preventing table bloat.
type DatabaseStore struct {
	db *bun.DB

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	done            chan struct{}
	closeOnce       sync.Once
}

// NewDatabaseStore opens the database, ensures the key-value table exists and
// starts the expiry sweep.
func NewDatabaseStore(opts DatabaseOptions) (*DatabaseStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("database connection string must be provided")
	}

	var db *bun.DB

	switch opts.Provider {
	case "postgres":
		sqlDB, err := sql.Open("postgres", opts.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db = bun.NewDB(sqlDB, pgdialect.New())
	case "sqlite":
		sqlDB, err := sql.Open("sqlite3", opts.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", opts.Provider)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.NewCreateTable().Model((*KeyValueEntry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create key-value table: %w", err)
	}

	cleanupInterval := opts.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = time.Minute
	}

	ds := &DatabaseStore{
		db:              db,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		done:            make(chan struct{}),
	}

	go ds.cleanupExpiredEntries()

	return ds, nil
}

// Get retrieves a value by key. Expired rows are deleted immediately.
func (ds *DatabaseStore) Get(ctx context.Context, key string) (string, error) {
	var entry KeyValueEntry
	err := ds.db.NewSelect().Model(&entry).Where("key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("database error: %w", err)
	}

	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		if _, err := ds.db.NewDelete().Model((*KeyValueEntry)(nil)).Where("key = ?", key).Exec(ctx); err != nil {
			slog.Error("error deleting expired entry", slog.String("key", key), slog.Any("error", err))
		}
		return "", ErrNotFound
	}

	return entry.Value, nil
}

// Set stores a value via upsert. A ttl of zero means no expiration.
func (ds *DatabaseStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	entry := KeyValueEntry{Key: key, Value: value}
	if ttl > 0 {
		expiresAt := time.Now().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	_, err := ds.db.NewInsert().Model(&entry).
		On("CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	return nil
}

// GetDel atomically retrieves and deletes a key with DELETE ... RETURNING, so
// exactly one of any number of concurrent callers observes the value.
func (ds *DatabaseStore) GetDel(ctx context.Context, key string) (string, error) {
	var entry KeyValueEntry
	err := ds.db.NewDelete().Model(&entry).Where("key = ?", key).Returning("value, expires_at").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("database error: %w", err)
	}

	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		return "", ErrNotFound
	}

	return entry.Value, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (ds *DatabaseStore) Delete(ctx context.Context, key string) error {
	if _, err := ds.db.NewDelete().Model((*KeyValueEntry)(nil)).Where("key = ?", key).Exec(ctx); err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// Incr increments the integer value at key by 1 inside a transaction,
// initializing it to 1 if the key is missing or expired. The ttl is only
// applied on key creation.
func (ds *DatabaseStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64

	err := ds.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var entry KeyValueEntry
		var expiresAt *time.Time

		q := tx.NewSelect().Model(&entry).Where("key = ?", key)
		// SQLite has no FOR UPDATE clause; its writers are serialized and the
		// transaction already makes the read-modify-write atomic.
		if ds.db.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		err := q.Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// new key
		case err != nil:
			return err
		case entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt):
			// expired, restart the counter
		default:
			num, perr := strconv.ParseInt(entry.Value, 10, 64)
			if perr != nil {
				return fmt.Errorf("value at key %s is not a valid integer: %w", key, perr)
			}
			count = num
			expiresAt = entry.ExpiresAt
		}

		if count == 0 && ttl > 0 {
			t := time.Now().Add(ttl)
			expiresAt = &t
		}

		count++

		next := KeyValueEntry{
			Key:       key,
			Value:     strconv.FormatInt(count, 10),
			ExpiresAt: expiresAt,
		}

		_, err = tx.NewInsert().Model(&next).
			On("CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	return count, nil
}

// TTL returns the remaining time to live for a key.
func (ds *DatabaseStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	var entry KeyValueEntry
	err := ds.db.NewSelect().Model(&entry).Where("key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("database error: %w", err)
	}

	if entry.ExpiresAt == nil {
		return 0, nil
	}
	remaining := time.Until(*entry.ExpiresAt)
	if remaining <= 0 {
		return 0, ErrNotFound
	}

	return remaining, nil
}

// Ping verifies database connectivity.
func (ds *DatabaseStore) Ping(ctx context.Context) error {
	if err := ds.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping error: %w", err)
	}
	return nil
}

// cleanupExpiredEntries runs periodically to remove expired rows.
func (ds *DatabaseStore) cleanupExpiredEntries() {
	ticker := time.NewTicker(ds.cleanupInterval)
	defer ticker.Stop()
	defer close(ds.done)

	for {
		select {
		case <-ds.stopCleanup:
			return
		case <-ticker.C:
			ds.removeExpiredEntries()
		}
	}
}

// removeExpiredEntries removes all expired rows from the table.
func (ds *DatabaseStore) removeExpiredEntries() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := ds.db.NewDelete().Model((*KeyValueEntry)(nil)).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Exec(ctx)
	if err != nil {
		slog.Error("error cleaning up expired entries from faucet_kv", slog.Any("error", err))
	}
}

// Close stops the sweep goroutine and closes the database.
func (ds *DatabaseStore) Close() error {
	var err error
	ds.closeOnce.Do(func() {
		close(ds.stopCleanup)
		<-ds.done
		err = ds.db.Close()
	})
	return err
}
