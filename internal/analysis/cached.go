package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"triagegate/internal/cache"

	"golang.org/x/sync/singleflight"
)

// CachedAnalyzer memoizes an Analyzer behind the cache engine: get
// before analyzing, put after. Concurrent requests for the same
// fingerprint share one upstream call through singleflight, so a burst
// of identical messages costs one analysis.
type CachedAnalyzer struct {
	inner Analyzer
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedAnalyzer wraps inner with the cache, storing results for ttl.
func NewCachedAnalyzer(inner Analyzer, c cache.Cache, ttl time.Duration) *CachedAnalyzer {
	return &CachedAnalyzer{
		inner: inner,
		cache: c,
		ttl:   ttl,
	}
}

// Analyze returns the cached result when one exists, and which tier
// served it. On a miss the inner analyzer runs and the result is
// written back to every tier.
func (a *CachedAnalyzer) Analyze(ctx context.Context, req *Request) (*Result, cache.Tier, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	if payload, tier, ok := a.cache.Get(ctx, req.Text, req.Context); ok {
		var cached Result
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, tier, nil
		}
		// Undecodable payload: fall through and recompute.
	}

	key := cache.DeriveKey(req.Text, req.Context)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		result, err := a.inner.Analyze(ctx, req)
		if err != nil {
			return nil, err
		}

		if payload, err := json.Marshal(result); err == nil {
			a.cache.Put(ctx, req.Text, req.Context, payload, a.ttl)
		}
		return result, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("analysis failed: %w", err)
	}

	return v.(*Result), "", nil
}
