package cache

import (
	"context"
	"encoding/json"
	"time"

	"triagegate/internal/metrics"
	"triagegate/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingEngine wraps a Cache with logging + metrics.
type LoggingEngine struct {
	inner Cache
}

// NewLoggingEngine returns a cache that logs and records metrics.
func NewLoggingEngine(inner Cache) Cache {
	return &LoggingEngine{inner: inner}
}

func (c *LoggingEngine) Get(ctx context.Context, text string, reqContext map[string]string) (json.RawMessage, Tier, bool) {
	start := time.Now()
	payload, tier, ok := c.inner.Get(ctx, text, reqContext)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if ok {
		result = "hit"
		// Prometheus: count hits per tier
		metrics.CacheHitsTotal.WithLabelValues(string(tier)).Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
	}
	if !c.inner.Stats().PersistentReachable {
		metrics.StoreUnreachableTotal.Inc()
	}

	logger.Info("cache_get",
		zap.String("cache_key", DeriveKey(text, reqContext)),
		zap.String("cache_tier", string(tier)),
		zap.String("cache_result", result), // hit | miss
		zap.Float64("latency_ms", latencyMs),
	)

	return payload, tier, ok
}

func (c *LoggingEngine) Put(ctx context.Context, text string, reqContext map[string]string, payload json.RawMessage, ttl time.Duration) {
	start := time.Now()
	c.inner.Put(ctx, text, reqContext, payload, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logging.L(ctx).Info("cache_put",
		zap.String("cache_key", DeriveKey(text, reqContext)),
		zap.Duration("ttl", ttl),
		zap.Int("payload_bytes", len(payload)),
		zap.Float64("latency_ms", latencyMs),
	)
}

func (c *LoggingEngine) Clear(ctx context.Context) {
	c.inner.Clear(ctx)
	logging.L(ctx).Info("cache_clear")
}

func (c *LoggingEngine) CleanupExpired(ctx context.Context) int {
	start := time.Now()
	removed := c.inner.CleanupExpired(ctx)
	metrics.CleanupRowsTotal.Add(float64(removed))

	logging.L(ctx).Info("cache_cleanup",
		zap.Int("rows_removed", removed),
		zap.Duration("duration", time.Since(start)),
	)
	return removed
}

func (c *LoggingEngine) Stats() Snapshot {
	return c.inner.Stats()
}

func (c *LoggingEngine) Close() error {
	return c.inner.Close()
}

var _ Cache = (*LoggingEngine)(nil)
