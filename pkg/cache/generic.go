package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a generic JSON read-through cache over Redis, generalizing the
// ItemCache's hash-per-entity shape (used by the original item demo) into
// a reusable type any example service can key by its own entity ID. Keys
// are scoped by a caller-supplied prefix, matching ItemCache's
// "<prefix>:<key>" layout.
type Cache[T any] struct {
	client *RedisClient
	prefix string
	ttl    time.Duration
}

// NewCache returns a Cache storing values under "<prefix>:<key>" with ttl.
func NewCache[T any](client *RedisClient, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached value for key. Returns redis.Nil if absent.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := c.client.Client().Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		return nil, err // propagates redis.Nil for callers to check explicitly
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", c.fullKey(key), err)
	}
	return &v, nil
}

// Set writes value under key with the cache's configured TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value *T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", c.fullKey(key), err)
	}
	if err := c.client.Client().Set(ctx, c.fullKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", c.fullKey(key), err)
	}
	return nil
}

// Delete removes key from the cache.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Client().Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", c.fullKey(key), err)
	}
	return nil
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss (redis.Nil).
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (*T, error)) (*T, error) {
	v, err := c.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	v, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		return v, err // value is still valid even if the cache write failed
	}
	return v, nil
}

func (c *Cache[T]) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}
