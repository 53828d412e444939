package cache

import "sync/atomic"

// Tier identifies which tier satisfied a lookup.
type Tier string

const (
	TierMemory     Tier = "memory"
	TierPattern    Tier = "pattern"
	TierPersistent Tier = "persistent"
)

// Stats counts cache outcomes for the lifetime of the process. Counters
// only move forward until Reset. Individual increments may race with a
// concurrent Snapshot; that slack is acceptable, the counters are
// operational signals, not an audit log.
type Stats struct {
	requests       atomic.Int64
	memoryHits     atomic.Int64
	patternHits    atomic.Int64
	persistentHits atomic.Int64
	misses         atomic.Int64
	writes         atomic.Int64
	cleanups       atomic.Int64
	swept          atomic.Int64
	persistentUp   atomic.Bool
}

// NewStats creates a recorder with the persistent tier assumed healthy
// until an operation proves otherwise.
func NewStats() *Stats {
	s := &Stats{}
	s.persistentUp.Store(true)
	return s
}

func (s *Stats) RecordRequest() { s.requests.Add(1) }
func (s *Stats) RecordMiss()    { s.misses.Add(1) }
func (s *Stats) RecordWrite()   { s.writes.Add(1) }

func (s *Stats) RecordHit(tier Tier) {
	switch tier {
	case TierMemory:
		s.memoryHits.Add(1)
	case TierPattern:
		s.patternHits.Add(1)
	case TierPersistent:
		s.persistentHits.Add(1)
	}
}

// RecordCleanup notes one sweep and how many rows it removed.
func (s *Stats) RecordCleanup(removed int) {
	s.cleanups.Add(1)
	s.swept.Add(int64(removed))
}

// SetPersistentReachable records the outcome of the latest store call.
func (s *Stats) SetPersistentReachable(up bool) {
	s.persistentUp.Store(up)
}

// Reset zeroes every counter. Only clear() uses this.
func (s *Stats) Reset() {
	s.requests.Store(0)
	s.memoryHits.Store(0)
	s.patternHits.Store(0)
	s.persistentHits.Store(0)
	s.misses.Store(0)
	s.writes.Store(0)
	s.cleanups.Store(0)
	s.swept.Store(0)
	s.persistentUp.Store(true)
}

// Snapshot is a point-in-time, serializable view of the counters.
type Snapshot struct {
	Requests            int64            `json:"requests"`
	Hits                int64            `json:"hits"`
	HitRate             float64          `json:"hit_rate"`
	HitsByTier          map[string]int64 `json:"hits_by_tier"`
	Misses              int64            `json:"misses"`
	Writes              int64            `json:"writes"`
	Cleanups            int64            `json:"cleanups"`
	SweptRows           int64            `json:"swept_rows"`
	PersistentReachable bool             `json:"persistent_reachable"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	requests := s.requests.Load()
	memory := s.memoryHits.Load()
	pattern := s.patternHits.Load()
	persistent := s.persistentHits.Load()
	hits := memory + pattern + persistent

	denom := requests
	if denom < 1 {
		denom = 1
	}

	return Snapshot{
		Requests: requests,
		Hits:     hits,
		HitRate:  float64(hits) / float64(denom),
		HitsByTier: map[string]int64{
			string(TierMemory):     memory,
			string(TierPattern):    pattern,
			string(TierPersistent): persistent,
		},
		Misses:              s.misses.Load(),
		Writes:              s.writes.Load(),
		Cleanups:            s.cleanups.Load(),
		SweptRows:           s.swept.Load(),
		PersistentReachable: s.persistentUp.Load(),
	}
}
