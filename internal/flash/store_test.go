package flash

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewStore(redis.Wrap(raw), ttl), mr
}

func TestTakeIsReadOnce(t *testing.T) {
	store, _ := newStore(t, time.Minute)
	ctx := context.Background()
	notice := Notice{OrderID: uuid.New(), OrderNumber: "SF-20261015-ABCDEF"}

	require.NoError(t, store.Put(ctx, "customer:1", notice))

	got, err := store.Take(ctx, "customer:1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, notice, *got)

	again, err := store.Take(ctx, "customer:1")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestNoticeExpires(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "customer:1", Notice{OrderNumber: "SF-1"}))

	mr.FastForward(2 * time.Minute)
	got, err := store.Take(ctx, "customer:1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDefaultTTL(t *testing.T) {
	store, mr := newStore(t, 0)
	require.NoError(t, store.Put(context.Background(), "c", Notice{OrderNumber: "SF-1"}))
	assert.Equal(t, defaultTTL, mr.TTL("sf:flash:c"))
}

func TestOwnerRequired(t *testing.T) {
	store, _ := newStore(t, time.Minute)
	assert.Error(t, store.Put(context.Background(), "", Notice{}))
	_, err := store.Take(context.Background(), "")
	assert.Error(t, err)
}
