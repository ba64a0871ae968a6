package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"genericstore/internal/db/dbtest"
	"genericstore/internal/events"
	"genericstore/internal/store"
	rediskey "genericstore/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testStream = "genericstore:order-events:test"

type fakeKafka struct {
	mu   sync.Mutex
	envs []events.Envelope
	err  error
}

func (f *fakeKafka) Publish(_ context.Context, env events.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.envs = append(f.envs, env)
	return nil
}

func newRedis(t *testing.T) *rd.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func fulfilledEnvelope(t *testing.T, orderID uint, lines ...events.LineQty) events.Envelope {
	t.Helper()
	env, err := events.New(events.EventOrderFulfilled, "queue-test", orderID,
		events.OrderFulfilledPayload{OrderID: orderID, UserID: 1, Lines: lines})
	require.NoError(t, err)
	return env
}

func readOne(t *testing.T, r *Relay) rd.XMessage {
	t.Helper()
	msgs, err := r.readGroup(context.Background(), ">", 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestOutboxRejectsIncompleteEnvelope(t *testing.T) {
	rdb := newRedis(t)
	out := NewStreamOutbox(rdb, testStream)

	err := out.Publish(context.Background(), events.Envelope{EventType: events.EventOrderCreated})
	assert.Error(t, err)
	assert.Zero(t, rdb.XLen(context.Background(), testStream).Val())
}

func TestRelayForwardsAndAcks(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	kafka := &fakeKafka{}
	relay := NewRelay(rdb, kafka, zap.NewNop(), testStream, "relay", "relay-1")
	require.NoError(t, relay.ensureGroup(ctx))
	require.NoError(t, relay.ensureGroup(ctx), "existing group is not an error")

	env := fulfilledEnvelope(t, 7, events.LineQty{ProductID: 3, Quantity: 2})
	require.NoError(t, NewStreamOutbox(rdb, testStream).Publish(ctx, env))

	require.NoError(t, relay.processOne(ctx, readOne(t, relay)))

	require.Len(t, kafka.envs, 1)
	assert.Equal(t, env.EventID, kafka.envs[0].EventID)
	assert.Equal(t, "7", kafka.envs[0].CorrelationID)
	assert.Zero(t, rdb.XLen(ctx, testStream).Val())
}

func TestRelayKeepsEntryWhenKafkaFails(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	kafka := &fakeKafka{err: errors.New("broker down")}
	relay := NewRelay(rdb, kafka, zap.NewNop(), testStream, "relay", "relay-1")
	require.NoError(t, relay.ensureGroup(ctx))
	require.NoError(t, NewStreamOutbox(rdb, testStream).Publish(ctx, fulfilledEnvelope(t, 1)))

	msg := readOne(t, relay)
	assert.Error(t, relay.processOne(ctx, msg))
	assert.Equal(t, int64(1), rdb.XLen(ctx, testStream).Val())

	kafka.err = nil
	require.NoError(t, relay.processOne(ctx, msg))
	assert.Len(t, kafka.envs, 1)
	assert.Zero(t, rdb.XLen(ctx, testStream).Val())
}

func TestRelayDropsMalformedEntry(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	kafka := &fakeKafka{}
	relay := NewRelay(rdb, kafka, zap.NewNop(), testStream, "relay", "relay-1")
	require.NoError(t, relay.ensureGroup(ctx))
	require.NoError(t, rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"envelope": "{not json"},
	}).Err())

	require.NoError(t, relay.processOne(ctx, readOne(t, relay)))
	assert.Empty(t, kafka.envs)
	assert.Zero(t, rdb.XLen(ctx, testStream).Val())
}

func TestConsumerRefreshesStockCache(t *testing.T) {
	gdb := dbtest.New(t)
	rdb := newRedis(t)
	ctx := context.Background()
	cache := rediskey.NewStockCache(rdb, time.Hour)

	p := dbtest.SeedProduct(t, gdb, "P")
	dbtest.SeedStock(t, gdb, p.ID, 4)
	unstocked := dbtest.SeedProduct(t, gdb, "Q")
	require.NoError(t, cache.Set(ctx, unstocked.ID, 9))

	c := &Consumer{store: store.New(gdb), cache: cache, logger: zap.NewNop()}
	env := fulfilledEnvelope(t, 1,
		events.LineQty{ProductID: p.ID, Quantity: 1},
		events.LineQty{ProductID: unstocked.ID, Quantity: 1},
	)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, c.handle(ctx, b))

	qty, found, err := cache.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(4), qty)

	_, found, err = cache.Get(ctx, unstocked.ID)
	require.NoError(t, err)
	assert.False(t, found, "products without a stock record are evicted")
}

func TestConsumerIgnoresOtherEvents(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	env, err := events.New(events.EventOrderCreated, "queue-test", 1,
		events.OrderCreatedPayload{OrderID: 1, UserID: 1, Status: "Pending"})
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)

	assert.NoError(t, c.handle(context.Background(), b))
	assert.Error(t, c.handle(context.Background(), []byte("garbage")))
}
