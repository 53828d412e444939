package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the interface the analysis pipeline programs against.
// Implemented by Engine and by the logging decorator around it.
type Cache interface {
	Get(ctx context.Context, text string, reqContext map[string]string) (json.RawMessage, Tier, bool)
	Put(ctx context.Context, text string, reqContext map[string]string, payload json.RawMessage, ttl time.Duration)
	Clear(ctx context.Context)
	CleanupExpired(ctx context.Context) int
	Stats() Snapshot
	Close() error
}

// Config configures an Engine.
type Config struct {
	MemoryCapacity  int
	PatternCapacity int
}

// Engine composes the three tiers behind one get/put contract. Lookups
// probe tiers in increasing cost order and backfill cheaper tiers on a
// deeper hit; writes fan out to every tier independently.
//
// The engine is never a source of failure for its caller: a store that
// is down or slow degrades lookups to misses and writes to the volatile
// tiers, visible only through the statistics snapshot.
type Engine struct {
	memory  *MemoryTier
	pattern *PatternTier
	store   Store
	stats   *Stats
}

// NewEngine builds an engine over the given durable store. A nil store
// yields a volatile-only cache, which is how tests and dev mode run.
func NewEngine(cfg Config, store Store) *Engine {
	return &Engine{
		memory:  NewMemoryTier(cfg.MemoryCapacity),
		pattern: NewPatternTier(cfg.PatternCapacity),
		store:   store,
		stats:   NewStats(),
	}
}

// Get looks up the cached payload for (text, reqContext).
//
// Tier order is memory, then pattern, then the durable store. A pattern
// hit backfills memory; a store hit backfills both volatile tiers so
// the next lookup for the same key is served in-process. Store faults
// are absorbed and counted as a miss.
func (e *Engine) Get(ctx context.Context, text string, reqContext map[string]string) (json.RawMessage, Tier, bool) {
	e.stats.RecordRequest()
	key := DeriveKey(text, reqContext)

	if payload, ok := e.memory.Get(key); ok {
		e.stats.RecordHit(TierMemory)
		return payload, TierMemory, true
	}

	if payload, ok := e.pattern.Get(text); ok {
		e.memory.Put(key, payload)
		e.stats.RecordHit(TierPattern)
		return payload, TierPattern, true
	}

	if e.store != nil {
		payload, ok, err := e.store.Get(ctx, key)
		if err != nil {
			e.stats.SetPersistentReachable(false)
		} else {
			e.stats.SetPersistentReachable(true)
			if ok {
				e.memory.Put(key, payload)
				e.pattern.Put(text, payload)
				e.stats.RecordHit(TierPersistent)
				return payload, TierPersistent, true
			}
		}
	}

	e.stats.RecordMiss()
	return nil, "", false
}

// Put writes the payload to every tier. The volatile tiers always take
// the write; the store write is attempted only with a positive TTL and
// its failure does not fail the call.
func (e *Engine) Put(ctx context.Context, text string, reqContext map[string]string, payload json.RawMessage, ttl time.Duration) {
	key := DeriveKey(text, reqContext)

	e.memory.Put(key, payload)
	e.pattern.Put(text, payload)
	e.stats.RecordWrite()

	if e.store == nil || ttl <= 0 {
		return
	}
	if err := e.store.Put(ctx, key, payload, ttl); err != nil {
		e.stats.SetPersistentReachable(false)
		return
	}
	e.stats.SetPersistentReachable(true)
}

// Clear empties every tier and resets the counters. Administrative;
// not part of the hot path.
func (e *Engine) Clear(ctx context.Context) {
	e.memory.Clear()
	e.pattern.Clear()
	if e.store != nil {
		if err := e.store.DeleteAll(ctx); err != nil {
			e.stats.SetPersistentReachable(false)
		}
	}
	e.stats.Reset()
}

// CleanupExpired sweeps logically expired rows out of the durable store
// and returns how many were removed.
func (e *Engine) CleanupExpired(ctx context.Context) int {
	if e.store == nil {
		return 0
	}
	removed, err := e.store.DeleteExpired(ctx)
	if err != nil {
		e.stats.SetPersistentReachable(false)
	} else {
		e.stats.SetPersistentReachable(true)
	}
	e.stats.RecordCleanup(removed)
	return removed
}

// Stats returns a point-in-time snapshot of the counters.
func (e *Engine) Stats() Snapshot {
	return e.stats.Snapshot()
}

// Close releases the durable store's resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

var _ Cache = (*Engine)(nil)
