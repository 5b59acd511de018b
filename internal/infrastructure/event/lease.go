package event

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// Lease elects a single relay among several server instances. Acquire
// reports ok=false while another instance holds it.
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// RedisLease is a Lease on one redislock key. The TTL bounds how long a
// crashed holder blocks the others.
type RedisLease struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

func NewRedisLease(client redislock.RedisClient, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{locker: redislock.New(client), key: key, ttl: ttl}
}

// Acquire tries once; a relay that misses the lease waits for its next tick
func (l *RedisLease) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	release := func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// expired mid-batch; the next holder re-claims whatever is left
			return nil
		}
		return err
	}
	return release, true, nil
}
