package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

// ErrLockLost means the lease expired and another worker may own it now.
var ErrLockLost = errors.New("cron lock lost")

// Both scripts act only while the key still holds the caller's owner token.
var (
	releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)
	refreshScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)
)

// Lock is a lease on the right to run a cron cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error)
}

// RedisLock is a Lock held as a token-valued redis key with a TTL.
type RedisLock struct {
	client leaseStore
	key    string
	ttl    time.Duration
	token  string
}

func NewRedisLock(client leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Refresh pushes the lease out by another TTL. It returns ErrLockLost when
// the key no longer carries our token.
func (l *RedisLock) Refresh(ctx context.Context) error {
	if l.token == "" {
		return ErrLockLost
	}
	n, err := l.client.RunScript(ctx, refreshScript, []string{l.key}, l.token, l.ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("refresh %s: %w", l.key, err)
	}
	if updated, _ := n.(int64); updated == 0 {
		l.token = ""
		return ErrLockLost
	}
	return nil
}

// Release deletes the key if we still hold it; a lease already taken over by
// another worker is left untouched.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if _, err := l.client.RunScript(ctx, releaseScript, []string{l.key}, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.token = ""
	return nil
}
