package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func newTestLocks(t *testing.T) (*RedisLock, *RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.Wrap(raw)

	a, err := NewRedisLock(client, "sf:lock:cron", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(client, "sf:lock:cron", time.Minute)
	require.NoError(t, err)
	return a, b, mr
}

func TestRedisLockIsExclusive(t *testing.T) {
	a, b, mr := newTestLocks(t)
	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("sf:lock:cron"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseKeepsForeignOwner(t *testing.T) {
	a, b, mr := newTestLocks(t)
	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// a's lease lapses and b takes over.
	mr.FastForward(2 * time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Release(ctx))
	assert.True(t, mr.Exists("sf:lock:cron"), "a must not delete b's lock")
}

func TestRedisLockRefreshExtendsOwnLease(t *testing.T) {
	a, _, mr := newTestLocks(t)
	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(40 * time.Second)
	require.NoError(t, a.Refresh(ctx))
	assert.Equal(t, time.Minute, mr.TTL("sf:lock:cron"))
}

func TestRedisLockRefreshReportsLostLease(t *testing.T) {
	a, b, mr := newTestLocks(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.Refresh(ctx), ErrLockLost, "refresh before acquire")

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, a.Refresh(ctx), ErrLockLost)
	require.NoError(t, b.Refresh(ctx))
}
