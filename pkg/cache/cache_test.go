package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcgsync/pkg/config"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, err = c.Get(ctx, "md5:a.json")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "md5:a.json", []byte("abc"), time.Minute))
	got, err := c.Get(ctx, "md5:a.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "md5:a.json")
	assert.ErrorIs(t, err, ErrMiss, "expired")

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisCacheServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	defer c.Close()
	mr.Close()

	_, err = c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Type: config.CacheNone})
	require.NoError(t, err)
	assert.Nil(t, c)

	mr := miniredis.RunT(t)
	c, err = New(config.CacheConfig{Type: config.CacheRedis, RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)
	c.Close()

	c, err = New(config.CacheConfig{Type: config.CacheMemcache, MemcacheAddr: "localhost:11211"})
	require.NoError(t, err)
	assert.IsType(t, &MemcacheCache{}, c)

	_, err = New(config.CacheConfig{Type: "etcd"})
	assert.Error(t, err)

	_, err = New(config.CacheConfig{Type: config.CacheRedis, RedisURL: "not a url"})
	assert.Error(t, err)
}

// This test requires a running memcached instance
func TestMemcacheCache(t *testing.T) {
	c := NewMemcacheCache("localhost:11211")
	if _, err := c.client.Get("probe"); err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "md5:tcgsync test", []byte("v"), time.Second))
	got, err := c.Get(ctx, "md5:tcgsync test")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "md5:tcgsync test"))
	_, err = c.Get(ctx, "md5:tcgsync test")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Delete(ctx, "md5:tcgsync test"), "deleting a missing key is not an error")
}

func TestMemcacheKey(t *testing.T) {
	assert.Equal(t, "a_b", memcacheKey("a b"))
	assert.Len(t, memcacheKey(string(make([]byte, 300))), 250)
}
