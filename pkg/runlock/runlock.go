// Package runlock guarantees a single extraction per storage target across
// processes, using a Redis key set with NX and an owner token.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errs "tcgsync/pkg/errors"
	"tcgsync/pkg/logger"
)

const keyPrefix = "tcgsync:lock:"

// ErrHeld is returned by Acquire when another owner holds the lock
var ErrHeld = errors.New("run lock is held by another process")

// release and refresh only touch the key while it still carries our token
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker hands out locks stored in Redis
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// New parses redisURL and returns a Locker whose locks expire after ttl
// unless refreshed.
func New(redisURL string, ttl time.Duration, log logger.Logger) (*Locker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), ttl, log), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, log logger.Logger) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{
		client: client,
		ttl:    ttl,
		log:    logger.OrDefault(log).WithField("component", "runlock"),
	}
}

func (l *Locker) Close() error {
	return l.client.Close()
}

// Lock is a held run lock
type Lock struct {
	locker *Locker
	key    string
	token  string
	stop   context.CancelFunc
	done   chan struct{}
}

// Acquire takes the lock for name or returns ErrHeld. The lock is refreshed
// in the background until Release.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := keyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "run lock unavailable", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrHeld)
	}

	refreshCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	lock := &Lock{locker: l, key: key, token: token, stop: stop, done: make(chan struct{})}
	go lock.keepAlive(refreshCtx)

	l.log.InfoWithFields("Run lock acquired", map[string]interface{}{"key": key, "ttl": l.ttl.String()})
	return lock, nil
}

func (lk *Lock) keepAlive(ctx context.Context) {
	defer close(lk.done)
	ticker := time.NewTicker(lk.locker.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lk.Refresh(ctx); err != nil && ctx.Err() == nil {
				lk.locker.log.WarnWithFields("Run lock refresh failed", map[string]interface{}{
					"key":   lk.key,
					"error": err.Error(),
				})
			}
		}
	}
}

// Refresh extends the lock's expiry; it fails once the lock was lost
func (lk *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token, lk.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run lock %s no longer owned", lk.key)
	}
	return nil
}

// Release stops refreshing and deletes the key if it is still ours
func (lk *Lock) Release(ctx context.Context) error {
	lk.stop()
	<-lk.done

	n, err := releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	if n == 0 {
		lk.locker.log.WarnWithFields("Run lock expired before release", map[string]interface{}{"key": lk.key})
		return nil
	}
	lk.locker.log.Debug("Run lock released")
	return nil
}
