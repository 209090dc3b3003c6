package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Both scripts act only if the key still holds the caller's token.
const (
	unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`
	extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`
)

// InstanceLock implements domain.LockManager with SETNX and token-guarded
// release and extend scripts. Keys live under "{prefix}:lock:".
type InstanceLock struct {
	c        *Client
	unlockSc *redis.Script
	extendSc *redis.Script
}

// NewInstanceLock creates an InstanceLock backed by c.
func NewInstanceLock(c *Client) *InstanceLock {
	return &InstanceLock{
		c:        c,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
	}
}

// Acquire takes the lock for key or returns domain.ErrLockHeld.
func (il *InstanceLock) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lock, error) {
	token := uuid.NewString()
	lk := il.c.Key("lock", key)

	ok, err := il.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}
	return &lock{il: il, key: lk, token: token}, nil
}

type lock struct {
	il    *InstanceLock
	key   string
	token string

	mu       sync.Mutex
	released bool
}

// Extend pushes the expiry out to ttl from now. It fails with
// domain.ErrLockHeld if the lock was lost.
func (l *lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := l.il.extendSc.Run(ctx, l.il.c.rdb, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis: extend lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("redis: extend lock: %w", domain.ErrLockHeld)
	}
	return nil
}

// Release deletes the lock if still held. Safe to call more than once.
func (l *lock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	if err := l.il.unlockSc.Run(ctx, l.il.c.rdb, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

var _ domain.LockManager = (*InstanceLock)(nil)
