package ledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewCache(client, time.Minute)
}

func TestCacheTimelineRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	initiator := Initiator{Type: InitiatorPurchaseOrder, Name: "PO-1001"}

	_, ok := cache.GetTimeline(ctx, "demo-shop", initiator, 100)
	require.False(t, ok)

	timeline := []Mutation{
		{ID: 2, Shop: "demo-shop", Type: MutationSet, InitiatorType: initiator.Type, InitiatorName: initiator.Name, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ID: 1, Shop: "demo-shop", Type: MutationMove, InitiatorType: initiator.Type, InitiatorName: initiator.Name, CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	cache.SetTimeline(ctx, "demo-shop", initiator, 100, timeline)

	cached, ok := cache.GetTimeline(ctx, "demo-shop", initiator, 100)
	require.True(t, ok)
	assert.Equal(t, timeline, cached)
}

func TestCacheBumpInvalidatesAllTimelines(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	first := Initiator{Type: InitiatorPurchaseOrder, Name: "PO-1001"}
	second := Initiator{Type: InitiatorStockTransfer, Name: "ST-55"}

	cache.SetTimeline(ctx, "demo-shop", first, 100, []Mutation{{ID: 1}})
	cache.SetTimeline(ctx, "demo-shop", second, 100, []Mutation{{ID: 2}})

	cache.Bump(ctx)

	_, ok := cache.GetTimeline(ctx, "demo-shop", first, 100)
	assert.False(t, ok)
	_, ok = cache.GetTimeline(ctx, "demo-shop", second, 100)
	assert.False(t, ok)
}

func TestCacheKeysIsolateInitiators(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.SetTimeline(ctx, "demo-shop", Initiator{Type: InitiatorPurchaseOrder, Name: "PO-1001"}, 100, []Mutation{{ID: 1}})

	_, ok := cache.GetTimeline(ctx, "demo-shop", Initiator{Type: InitiatorPurchaseOrder, Name: "PO-1002"}, 100)
	assert.False(t, ok)
	_, ok = cache.GetTimeline(ctx, "other-shop", Initiator{Type: InitiatorPurchaseOrder, Name: "PO-1001"}, 100)
	assert.False(t, ok)
}

func TestCacheKeysIsolateLimits(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	initiator := Initiator{Type: InitiatorPurchaseOrder, Name: "PO-1001"}

	// A one-row timeline cached for limit=1 must not answer a limit=100 read.
	cache.SetTimeline(ctx, "demo-shop", initiator, 1, []Mutation{{ID: 3}})

	_, ok := cache.GetTimeline(ctx, "demo-shop", initiator, 100)
	assert.False(t, ok)

	cached, ok := cache.GetTimeline(ctx, "demo-shop", initiator, 1)
	require.True(t, ok)
	assert.Len(t, cached, 1)
}

func TestNilCacheFailsOpen(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	cache.Bump(ctx)
	cache.SetTimeline(ctx, "demo-shop", Initiator{Type: InitiatorUnknown, Name: "x"}, 100, nil)
	_, ok := cache.GetTimeline(ctx, "demo-shop", Initiator{Type: InitiatorUnknown, Name: "x"}, 100)
	assert.False(t, ok)
}
