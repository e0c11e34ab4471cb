// Package cache stores analytics provider responses for a bounded time.
package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/rickgao/polymarket-mirror/internal/config"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the cached value. ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// New builds the configured cache. Returns nil when caching is disabled.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "file", "":
		return NewFileCache(cfg.Dir, nil), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisCache(client, cfg.Redis.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
