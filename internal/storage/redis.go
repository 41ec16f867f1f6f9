package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ConcealNetwork/conceal-faucet-api/env"
)

// RedisOptions configures a Redis-backed store instance.
type RedisOptions struct {
	URL         string
	MaxRetries  int
	PoolSize    int
	PoolTimeout time.Duration
}

// RedisStore implements Store using Redis as the backend.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store and verifies connectivity.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if envURL := os.Getenv(env.EnvRedisURL); envURL != "" {
		opts.URL = envURL
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	if opts.PoolTimeout == 0 {
		opts.PoolTimeout = 30 * time.Second
	}

	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.MaxRetries = opts.MaxRetries
	opt.PoolSize = opts.PoolSize
	opt.PoolTimeout = opts.PoolTimeout
	opt.ReadTimeout = 5 * time.Second
	opt.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get retrieves a value from Redis by key.
func (rs *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := rs.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value in Redis. A ttl of zero means no expiration.
func (rs *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := rs.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// GetDel atomically retrieves and deletes a key using Redis GETDEL.
func (rs *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	val, err := rs.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel error: %w", err)
	}
	return val, nil
}

// Delete removes a key from Redis.
func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Incr atomically increments an integer value in Redis by 1.
// The ttl is only applied when the key is created by this call.
func (rs *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	val, err := rs.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr error: %w", err)
	}

	if val == 1 && ttl > 0 {
		if err := rs.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("redis expire error: %w", err)
		}
	}

	return val, nil
}

// TTL returns the remaining time to live for a key.
func (rs *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := rs.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl error: %w", err)
	}

	// Redis returns -2 if the key does not exist, -1 if it has no expiry.
	if ttl == -2 {
		return 0, ErrNotFound
	}
	if ttl == -1 {
		return 0, nil
	}

	return ttl, nil
}

// Ping verifies the Redis connection.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	if rs.client != nil {
		return rs.client.Close()
	}
	return nil
}
