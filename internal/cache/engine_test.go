package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore models a durable tier that is down: every operation
// errors the way a timed-out network call would.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (json.RawMessage, bool, error) {
	return nil, false, errors.New("store unreachable")
}
func (failingStore) Put(context.Context, string, json.RawMessage, time.Duration) error {
	return errors.New("store unreachable")
}
func (failingStore) DeleteExpired(context.Context) (int, error) {
	return 0, errors.New("store unreachable")
}
func (failingStore) DeleteAll(context.Context) error { return errors.New("store unreachable") }
func (failingStore) Reachable(context.Context) bool  { return false }
func (failingStore) Close() error                    { return nil }

func setupEngineWithRedis(t *testing.T) (*Engine, *RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	store := NewRedisStore(client, RedisStoreConfig{Prefix: "engine-test"})

	engine := NewEngine(Config{MemoryCapacity: 100, PatternCapacity: 50}, store)

	t.Cleanup(func() {
		_ = engine.Close()
		mr.Close()
	})

	return engine, store, mr
}

func TestEngineRoundTripWithTTL(t *testing.T) {
	engine, _, _ := setupEngineWithRedis(t)
	ctx := context.Background()

	reqCtx := map[string]string{"stage": "symptoms"}
	payload := json.RawMessage(`{"intent":"symptom_reporting"}`)

	engine.Put(ctx, "I have a headache", reqCtx, payload, time.Hour)

	got, tier, ok := engine.Get(ctx, "I have a headache", reqCtx)
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
	assert.JSONEq(t, string(payload), string(got))
}

func TestEnginePersistentHitBackfillsVolatileTiers(t *testing.T) {
	engine, store, _ := setupEngineWithRedis(t)
	ctx := context.Background()

	reqCtx := map[string]string{"stage": "symptoms"}
	payload := json.RawMessage(`{"intent":"symptom_reporting"}`)
	engine.Put(ctx, "persistent only", reqCtx, payload, time.Hour)

	// A fresh engine over the same store models a process restart:
	// the volatile tiers are empty, only the durable rows remain.
	restarted := NewEngine(Config{MemoryCapacity: 100, PatternCapacity: 50}, store)

	_, tier, ok := restarted.Get(ctx, "persistent only", reqCtx)
	require.True(t, ok)
	assert.Equal(t, TierPersistent, tier)

	// The hit backfilled memory: the second lookup never reaches the
	// store again.
	_, tier, ok = restarted.Get(ctx, "persistent only", reqCtx)
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)

	snap := restarted.Stats()
	assert.Equal(t, int64(1), snap.HitsByTier[string(TierPersistent)])
	assert.Equal(t, int64(1), snap.HitsByTier[string(TierMemory)])
}

func TestEnginePatternHitForNearDuplicatePhrasing(t *testing.T) {
	engine, _, _ := setupEngineWithRedis(t)
	ctx := context.Background()

	reqCtx := map[string]string{"stage": "symptoms"}
	engine.Put(ctx, "i have a sore throat", reqCtx, json.RawMessage(`{"intent":"symptom_reporting"}`), time.Hour)

	// Different phrasing, different fingerprint, but the stored prefix
	// is contained in the query.
	_, tier, ok := engine.Get(ctx, "i have a sore throat since yesterday", reqCtx)
	require.True(t, ok)
	assert.Equal(t, TierPattern, tier)

	// The pattern hit backfilled memory under the query's own key.
	_, tier, ok = engine.Get(ctx, "i have a sore throat since yesterday", reqCtx)
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
}

func TestEngineExpiredRowIsAMiss(t *testing.T) {
	engine, store, _ := setupEngineWithRedis(t)
	ctx := context.Background()

	reqCtx := map[string]string{"stage": "symptoms"}
	engine.Put(ctx, "stale entry", reqCtx, json.RawMessage(`{}`), time.Minute)

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	// Fresh engine so the lookup has to go through the store.
	restarted := NewEngine(Config{}, store)

	_, _, ok := restarted.Get(ctx, "stale entry", reqCtx)
	assert.False(t, ok, "expired row must read as a miss even before the sweep runs")
	assert.Equal(t, int64(1), restarted.Stats().Misses)
}

func TestEngineCleanupExpired(t *testing.T) {
	engine, store, _ := setupEngineWithRedis(t)
	ctx := context.Background()

	engine.Put(ctx, "one", nil, json.RawMessage(`{}`), time.Minute)
	engine.Put(ctx, "two", nil, json.RawMessage(`{}`), time.Hour)

	store.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	removed := engine.CleanupExpired(ctx)
	assert.Equal(t, 1, removed)

	snap := engine.Stats()
	assert.Equal(t, int64(1), snap.Cleanups)
	assert.Equal(t, int64(1), snap.SweptRows)
}

func TestEngineGracefulDegradationWithStoreDown(t *testing.T) {
	engine := NewEngine(Config{MemoryCapacity: 10, PatternCapacity: 10}, failingStore{})
	ctx := context.Background()

	reqCtx := map[string]string{"stage": "symptoms"}
	payload := json.RawMessage(`{"intent":"symptom_reporting"}`)

	// Put and Get must both succeed on the volatile tiers alone.
	engine.Put(ctx, "store is down", reqCtx, payload, time.Hour)

	got, tier, ok := engine.Get(ctx, "store is down", reqCtx)
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
	assert.JSONEq(t, string(payload), string(got))

	// A full miss probes the dead store and stays a miss, not an error.
	_, _, ok = engine.Get(ctx, "never written", reqCtx)
	assert.False(t, ok)

	assert.False(t, engine.Stats().PersistentReachable)
}

func TestEngineClearResetsEverything(t *testing.T) {
	engine, _, mr := setupEngineWithRedis(t)
	ctx := context.Background()

	reqCtx := map[string]string{"stage": "symptoms"}
	engine.Put(ctx, "to be cleared", reqCtx, json.RawMessage(`{}`), time.Hour)
	engine.Get(ctx, "to be cleared", reqCtx)

	engine.Clear(ctx)

	_, _, ok := engine.Get(ctx, "to be cleared", reqCtx)
	assert.False(t, ok, "expected miss after Clear")
	assert.Empty(t, mr.Keys(), "durable rows should be gone after Clear")

	snap := engine.Stats()
	// Only the single post-clear probe is counted.
	assert.Equal(t, int64(1), snap.Requests)
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, int64(0), snap.Hits)
	assert.Equal(t, int64(0), snap.Writes)
}

func TestEngineStatsHitRate(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	ctx := context.Background()

	snap := engine.Stats()
	assert.Equal(t, float64(0), snap.HitRate, "no requests must not divide by zero")

	engine.Put(ctx, "text", nil, json.RawMessage(`{}`), 0)
	engine.Get(ctx, "text", nil)
	engine.Get(ctx, "something else entirely", nil)

	snap = engine.Stats()
	assert.Equal(t, int64(2), snap.Requests)
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.InDelta(t, 0.5, snap.HitRate, 0.001)
}

func TestEngineNilStoreIsVolatileOnly(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	ctx := context.Background()

	engine.Put(ctx, "volatile", nil, json.RawMessage(`{}`), time.Hour)

	_, tier, ok := engine.Get(ctx, "volatile", nil)
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)

	assert.Equal(t, 0, engine.CleanupExpired(ctx))
	assert.NoError(t, engine.Close())
}
