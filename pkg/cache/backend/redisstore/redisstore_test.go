package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/pkg/cache"
	"github.com/calvinalkan/cachecore/pkg/cache/backend/redisstore"
)

// newClient connects to REDIS_ADDR (default localhost:6379) and skips the
// test if no server answers - these tests exercise a real Redis, not a
// fake, since the wire format and SCAN/pipeline behavior are the point.
func newClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("no redis reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBackend_SetGet(t *testing.T) {
	client := newClient(t)
	b := redisstore.New(client, redisstore.Options{Prefix: "cachecore_test:setget:"})
	ctx := context.Background()
	defer b.Clear(ctx)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), cache.Options{TTL: time.Minute}))

	e, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), e.Value)
}

// recordingMetrics captures Eviction reasons for assertions; everything
// else is a no-op.
type recordingMetrics struct {
	cache.NopMetrics
	evictions []cache.EvictionReason
}

func (m *recordingMetrics) Eviction(reason cache.EvictionReason) {
	m.evictions = append(m.evictions, reason)
}

func TestBackend_Get_MissReportsExpiredEviction(t *testing.T) {
	client := newClient(t)
	metrics := &recordingMetrics{}
	b := redisstore.New(client, redisstore.Options{Prefix: "cachecore_test:miss:", Metrics: metrics})
	ctx := context.Background()
	defer b.Clear(ctx)

	_, ok, err := b.Get(ctx, "never-set")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []cache.EvictionReason{cache.EvictionExpired}, metrics.evictions,
		"Redis gives no eviction callback, so every miss is reported as expired")
}

func TestBackend_TagInvalidation(t *testing.T) {
	client := newClient(t)
	b := redisstore.New(client, redisstore.Options{Prefix: "cachecore_test:tags:"})
	ctx := context.Background()
	defer b.Clear(ctx)

	require.NoError(t, b.Set(ctx, "user:1", []byte("a"), cache.Options{Tags: []string{"team:7"}}))
	require.NoError(t, b.Set(ctx, "user:2", []byte("b"), cache.Options{Tags: []string{"team:7"}}))

	keys, err := b.KeysByTag(ctx, "team:7")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"user:1", "user:2"}, keys)

	n, err := b.InvalidateByTag(ctx, "team:7")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, ok, _ := b.Get(ctx, "user:1")
	require.False(t, ok)
}

func TestBackend_DistributedLock(t *testing.T) {
	client := newClient(t)
	b := redisstore.New(client, redisstore.Options{Prefix: "cachecore_test:lock:"})
	ctx := context.Background()
	defer b.Clear(ctx)

	unlock, acquired, err := b.AcquireLock(ctx, "job:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, acquired2, err := b.AcquireLock(ctx, "job:1", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired2, "second acquisition should contend")

	require.NoError(t, unlock())

	_, acquired3, err := b.AcquireLock(ctx, "job:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired3, "lock should be free after unlock")
}

func TestBackend_PublishSubscribe(t *testing.T) {
	client := newClient(t)
	b := redisstore.New(client, redisstore.Options{Prefix: "cachecore_test:pubsub:"})
	ctx := context.Background()
	defer b.Clear(ctx)

	events, unsubscribe, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, b.Publish(ctx, cache.Event{Kind: cache.EventKey, Key: "user:42"}))

	select {
	case e := <-events:
		require.Equal(t, "user:42", e.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}
