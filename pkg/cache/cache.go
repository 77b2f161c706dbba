// Package cache provides the key/value cache used to memoize stored object
// hashes between runs. Redis and memcached implementations are available.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tcgsync/pkg/config"
)

// ErrMiss is returned by Get when the key is not cached
var ErrMiss = errors.New("cache miss")

// Cache is a small byte-value cache
type Cache interface {
	// Get returns ErrMiss when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a ttl of 0 means no expiration
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the cache selected by cfg. It returns a nil Cache for type none.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", config.CacheNone:
		return nil, nil
	case config.CacheRedis:
		return NewRedisCache(cfg.RedisURL)
	case config.CacheMemcache:
		return NewMemcacheCache(cfg.MemcacheAddr), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
