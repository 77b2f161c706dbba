package storage

import (
	"context"
	"errors"
	"time"

	"tcgsync/pkg/cache"
	"tcgsync/pkg/logger"
	"tcgsync/pkg/models"
)

// CachedBackend memoizes content hashes of another backend. Cache failures
// fall through to the wrapped backend.
type CachedBackend struct {
	Backend
	cache cache.Cache
	ttl   time.Duration
	log   logger.Logger
}

// WithCache wraps b; a nil cache returns b unchanged
func WithCache(b Backend, c cache.Cache, ttl time.Duration, log logger.Logger) Backend {
	if c == nil {
		return b
	}
	return &CachedBackend{
		Backend: b,
		cache:   c,
		ttl:     ttl,
		log:     logger.OrDefault(log).WithField("component", "storage_cache"),
	}
}

func (c *CachedBackend) cacheKey(key string) string {
	return "tcgsync:md5:" + c.Backend.String() + ":" + key
}

func (c *CachedBackend) cached(ctx context.Context, key string) (string, bool) {
	v, err := c.cache.Get(ctx, c.cacheKey(key))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.DebugWithFields("Hash cache unavailable", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return "", false
	}
	return string(v), true
}

func (c *CachedBackend) remember(ctx context.Context, key, hash string) {
	if err := c.cache.Set(ctx, c.cacheKey(key), []byte(hash), c.ttl); err != nil {
		c.log.DebugWithFields("Hash cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (c *CachedBackend) Exists(ctx context.Context, key string) (bool, error) {
	if _, ok := c.cached(ctx, key); ok {
		return true, nil
	}
	return c.Backend.Exists(ctx, key)
}

func (c *CachedBackend) HashOf(ctx context.Context, key string) (string, error) {
	if h, ok := c.cached(ctx, key); ok {
		return h, nil
	}
	h, err := c.Backend.HashOf(ctx, key)
	if err != nil {
		return "", err
	}
	c.remember(ctx, key, h)
	return h, nil
}

func (c *CachedBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := c.Backend.Write(ctx, key, data); err != nil {
		if derr := c.cache.Delete(ctx, c.cacheKey(key)); derr != nil {
			c.log.DebugWithFields("Hash cache delete failed", map[string]interface{}{"key": key, "error": derr.Error()})
		}
		return err
	}
	c.remember(ctx, key, models.ContentHash(data))
	return nil
}

func (c *CachedBackend) CopyToLocal(ctx context.Context, basePath string) (*CopyReport, error) {
	dst, err := NewLocalBackend(basePath)
	if err != nil {
		return nil, err
	}
	dst.SetLogger(c.log)
	return Copy(ctx, c, dst, c.log)
}
