package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCache stores values as Redis strings with native expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a cache with keys namespaced by prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k := c.prefix + key
	val, err := c.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", k, err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k := c.prefix + key
	if err := c.client.Set(ctx, k, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", k, err)
	}
	return nil
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
