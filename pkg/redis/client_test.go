package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(raw), mr
}

func TestGetDelReadsOnce(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	got, err := client.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = client.GetDel(ctx, "k")
	assert.True(t, errors.Is(err, Nil), "second read should miss, got %v", err)
}

func TestSetNXOnlyOnce(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	first, err := client.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	assert.Equal(t, time.Minute, mr.TTL("lock"))
}

func TestHashHelpers(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	v, err := client.HIncrBy(ctx, "h", "a", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	v, err = client.HIncrBy(ctx, "h", "a", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)

	require.NoError(t, client.Expire(ctx, "h", time.Hour))
	assert.Equal(t, time.Hour, mr.TTL("h"))

	all, err := client.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "5"}, all)

	require.NoError(t, client.HDel(ctx, "h", "a"))
	all, err = client.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRunScript(t *testing.T) {
	client, _ := setupTestRedis(t)
	script := redis.NewScript(`return redis.call('INCRBY', KEYS[1], ARGV[1])`)

	out, err := client.RunScript(context.Background(), script, []string{"counter"}, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 4, out)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("capture", "pay-1"): "sf:idempotency:capture:pay-1",
		client.CartKey("guest:abc"):               "sf:cart:guest:abc",
		client.FlashKey("customer:1"):             "sf:flash:customer:1",
		client.LockKey("cron"):                    "sf:lock:cron",
		client.AccessSessionKey("jti"):            "sf:session:access:jti",
	}
	for got, want := range cases {
		assert.Equal(t, want, got)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestIncrWithTTLStartsWindowOnFirstHit(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	n, err := client.IncrWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, time.Minute, mr.TTL("rl"))

	mr.FastForward(30 * time.Second)
	n, err = client.IncrWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 30*time.Second, mr.TTL("rl"), "later hits keep the original window")
}
