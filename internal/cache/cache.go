// Package cache wraps a Redis client for the gateway's two non-authoritative
// caching uses: a short-lived permission-fetch response cache, and an
// optional mirror of session existence/expiry for cross-process
// observability. Neither use treats Redis as a source of truth — the
// in-memory session registry is authoritative and rebuilds from scratch on
// restart; Redis entries merely expire away.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin, disable-able wrapper around a redis.Client. When
// disabled, every operation is a silent no-op so callers never need to
// branch on whether Redis is configured.
type Cache struct {
	client *redis.Client
}

// Config configures the underlying Redis connection pool.
type Config struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// New connects to Redis, or returns a disabled Cache if config.Enabled is
// false.
func New(config Config) (*Cache, error) {
	if !config.Enabled {
		return &Cache{client: nil}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,

		PoolSize:        25,
		MinIdleConns:    5,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the underlying connection, if any.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Enabled reports whether this cache is backed by a live Redis connection.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

// Get unmarshals the JSON value stored at key into target. Returns
// redis.Nil when the key is absent or the cache is disabled.
func (c *Cache) Get(ctx context.Context, key string, target interface{}) error {
	if !c.Enabled() {
		return redis.Nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), target)
}

// Set JSON-encodes value and stores it under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for key %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes one or more keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsMiss reports whether err is the cache-miss sentinel (redis.Nil).
func IsMiss(err error) bool {
	return err == redis.Nil
}
