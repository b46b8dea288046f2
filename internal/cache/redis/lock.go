package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locks guard jobs that must run on exactly one engine instance at a time,
// such as the monthly archive sweep. Each lock is a Redis key holding a
// per-acquisition token so only the holder can release or extend it.
const (
	lockPrefix = "arb:lock:"

	// releaseTimeout bounds the unlock round-trip after the caller's own
	// context has been cancelled.
	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the lock key only while it still holds the caller's
// token, so a holder whose TTL lapsed cannot free a lock someone else has
// since taken.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only while the caller still holds the lock.
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// LockManager implements domain.LockManager with SET NX + TTL leases.
type LockManager struct {
	rdb *redis.Client
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying()}
}

// Lease is a held lock. Release is idempotent and safe from any goroutine.
type Lease struct {
	rdb   *redis.Client
	key   string
	token string
	once  sync.Once
}

// Release frees the lock if this lease still holds it.
func (l *Lease) Release() {
	l.once.Do(func() {
		// Detached context: the lock must be released even when the
		// acquiring context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
	})
}

// Extend pushes the lease's expiry out to ttl from now. It returns false when
// the lease has lapsed and another holder may have taken the lock; the job
// should stop assuming exclusivity at that point.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, l.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: extend lock %s: %w", l.key, err)
	}
	return res == 1, nil
}

// AcquireLease takes the named lock for at most ttl. It returns
// domain.ErrLockHeld when another instance holds the lock.
func (lm *LockManager) AcquireLease(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	lease := &Lease{
		rdb:   lm.rdb,
		key:   lockPrefix + key,
		token: uuid.NewString(),
	}
	acquired, err := lm.rdb.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, domain.ErrLockHeld
	}
	return lease, nil
}

// Acquire adapts AcquireLease to the domain.LockManager interface for callers
// that never extend.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lease, err := lm.AcquireLease(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lease.Release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
