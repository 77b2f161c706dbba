package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tcgsync/pkg/errors"
)

func newLocker(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := New("redis://"+mr.Addr(), ttl, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return mr, l
}

func TestAcquireIsExclusive(t *testing.T) {
	mr, l := newLocker(t, time.Minute)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "s3://orders")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"s3://orders"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"s3://orders"))

	_, err = l.Acquire(ctx, "s3://orders")
	assert.ErrorIs(t, err, ErrHeld)

	other, err := l.Acquire(ctx, "local:/tmp/orders")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists(keyPrefix+"s3://orders"))

	again, err := l.Acquire(ctx, "s3://orders")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	mr, l := newLocker(t, time.Minute)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "target")
	require.NoError(t, err)

	// the lock expired and someone else took it
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(keyPrefix+"target", "someone-else"))

	require.NoError(t, lock.Release(ctx))
	got, err := mr.Get(keyPrefix + "target")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)

	assert.Error(t, lock.Refresh(ctx))
}

func TestRefreshExtendsTTL(t *testing.T) {
	mr, l := newLocker(t, time.Minute)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "target")
	require.NoError(t, err)
	defer lock.Release(ctx)

	mr.FastForward(40 * time.Second)
	require.NoError(t, lock.Refresh(ctx))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"target"))
}

func TestAcquireWithRedisDown(t *testing.T) {
	mr, l := newLocker(t, time.Minute)
	mr.Close()

	_, err := l.Acquire(context.Background(), "target")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}
