package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheCache implements Cache on memcached. The client has no context
// support, so ctx is only checked before each call.
type MemcacheCache struct {
	client *memcache.Client
}

func NewMemcacheCache(serverAddr string) *MemcacheCache {
	return &MemcacheCache{client: memcache.New(serverAddr)}
}

func (m *MemcacheCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := m.client.Get(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return item.Value, nil
}

func (m *MemcacheCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      value,
		Expiration: int32(ttl.Seconds()),
	})
}

func (m *MemcacheCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.client.Delete(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (m *MemcacheCache) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.client.Ping()
}

// Close is a no-op; the client keeps only idle pooled connections.
func (m *MemcacheCache) Close() error {
	return nil
}

// memcacheKey replaces characters memcached rejects in keys
func memcacheKey(key string) string {
	b := []byte(key)
	for i, c := range b {
		if c <= ' ' || c == 0x7f {
			b[i] = '_'
		}
	}
	if len(b) > 250 {
		b = b[:250]
	}
	return string(b)
}
