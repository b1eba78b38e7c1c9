package feed

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when a lock could not be obtained before the retry
// budget ran out.
var ErrLockBusy = errors.New("lock busy")

// RedisLocker hands out short-lived named locks shared by every server
// instance connected to the same Redis.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker returns a locker whose keys are prefixed with prefix. Locks
// expire after ttl even if never released.
func NewRedisLocker(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	}
}

// Obtain blocks until name is locked, the retry budget is spent or ctx ends.
// The returned func releases the lock.
func (l *RedisLocker) Obtain(ctx context.Context, name string) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+name, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockBusy
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// Release uses its own context: ctx may already be cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = lock.Release(rctx)
	}, nil
}
