package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GTDGit/gtd_paygate/internal/config"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = redis.Nil

// incrAndMaybeExpireScript increments KEYS[1] and sets its expiry only when
// the increment created it, so the window never slides.
// KEYS[1] = key
// ARGV[1] = expiration in milliseconds
var incrAndMaybeExpireScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisClient wraps the go-redis client with helper methods.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client from config.
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// NewRedisClientFromClient wraps an existing go-redis client.
func NewRedisClientFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Set stores a key-value pair with TTL.
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key. Missing keys return ErrMiss.
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	return r.client.Get(ctx, key).Bytes()
}

// GetInt retrieves an integer counter. Missing keys return ErrMiss.
func (r *RedisClient) GetInt(ctx context.Context, key string) (int64, error) {
	return r.client.Get(ctx, key).Int64()
}

// IncrAndMaybeExpire atomically increments key and, if the key was just
// created, sets its expiry to ttl. It returns the new value.
func (r *RedisClient) IncrAndMaybeExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrAndMaybeExpireScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
}

// TTL returns the remaining time to live of key, or 0 if it has none.
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Delete removes keys.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Ping checks connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// IsMiss reports whether err signals a missing key.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
