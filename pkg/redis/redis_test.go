package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIdempotencyAcquireAndRelease(t *testing.T) {
	_, rdb := newClient(t)
	ctx := context.Background()
	key := IdempotencyKey(3, "abc")

	ok, owner, err := AcquireIdempotency(ctx, rdb, key, "req-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "req-1", owner)

	ok, owner, err = AcquireIdempotency(ctx, rdb, key, "req-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "req-1", owner)

	// a foreign request id must not free the key
	require.NoError(t, ReleaseIdempotencyIfMatch(ctx, rdb, key, "req-2"))
	ok, _, err = AcquireIdempotency(ctx, rdb, key, "req-3", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ReleaseIdempotencyIfMatch(ctx, rdb, key, "req-1"))
	ok, _, err = AcquireIdempotency(ctx, rdb, key, "req-3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestStateRoundTrip(t *testing.T) {
	mr, rdb := newClient(t)
	ctx := context.Background()

	_, found, err := GetRequestState(ctx, rdb, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	st := RequestState{RequestID: "req-1", Status: RequestSuccess, OrderID: 42}
	require.NoError(t, PutRequestState(ctx, rdb, st, time.Minute))

	got, found, err := GetRequestState(ctx, rdb, "req-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, st, got)
	assert.True(t, mr.TTL(RequestStatusKey("req-1")) > 0)
}

func TestStockCache(t *testing.T) {
	_, rdb := newClient(t)
	ctx := context.Background()
	cache := NewStockCache(rdb, time.Hour)

	_, found, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, 1, 10))
	v, found, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(10), v)

	require.NoError(t, cache.Invalidate(ctx, 1, 2))
	_, found, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	var nilCache *StockCache
	assert.NoError(t, nilCache.Set(ctx, 1, 1))
}
