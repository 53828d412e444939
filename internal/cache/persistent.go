package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStoreTimeout bounds every round trip to the backing store.
const DefaultStoreTimeout = 3 * time.Second

// Store is the capability interface for the durable tier. Any backend
// offering upsert-by-key, expiry-filtered reads, bulk delete of expired
// rows, and a reachability probe qualifies; a test double satisfies it
// without a live store.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
	Reachable(ctx context.Context) bool
	Close() error
}

// storeEntry is the envelope persisted per key. expires_at is checked
// at read time; the native Redis TTL set on write only reclaims storage
// and is never trusted for correctness.
type storeEntry struct {
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
}

// RedisStoreConfig configures the Redis-backed store.
type RedisStoreConfig struct {
	Prefix    string
	OpTimeout time.Duration // per-operation bound, default DefaultStoreTimeout
}

// RedisStore implements Store on top of Redis.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	now     func() time.Time // overridable in tests
}

// NewRedisStore creates a Redis-backed durable tier.
func NewRedisStore(client *redis.Client, cfg RedisStoreConfig) *RedisStore {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &RedisStore{
		client:  client,
		prefix:  cfg.Prefix,
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get reads the envelope for key and returns its payload when the entry
// is still logically alive. Rows whose expires_at has passed are treated
// as misses even if Redis has not physically removed them yet, and are
// deleted opportunistically. The last_accessed_at refresh is best-effort;
// its failure never fails the read.
func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	redisKey := s.key(key)

	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store get failed: %w", err)
	}

	var entry storeEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable row: drop it and report a miss.
		_ = s.client.Del(ctx, redisKey).Err()
		return nil, false, nil
	}

	now := s.now()
	if !entry.ExpiresAt.After(now) {
		_ = s.client.Del(ctx, redisKey).Err()
		return nil, false, nil
	}

	entry.LastAccessedAt = now
	if updated, err := json.Marshal(entry); err == nil {
		_ = s.client.Set(ctx, redisKey, updated, redis.KeepTTL).Err()
	}

	return entry.Payload, true, nil
}

// Put upserts the envelope for key. The native TTL mirrors expires_at so
// Redis reclaims dead rows on its own schedule. Entries without a
// positive TTL never reach the store.
func (s *RedisStore) Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	entry := storeEntry{
		Payload:        payload,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("store marshal failed: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("store put failed: %w", err)
	}
	return nil
}

// DeleteExpired scans the key space and removes rows whose expires_at
// has passed. Each deletion is independently safe, so the sweep is
// idempotent and may be interrupted or run concurrently without leaving
// the store in an invalid state.
func (s *RedisStore) DeleteExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pattern := "*"
	if s.prefix != "" {
		pattern = s.prefix + ":*"
	}

	deleted := 0
	now := s.now()

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()

		raw, err := s.client.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // reclaimed between scan and read
		}
		if err != nil {
			return deleted, fmt.Errorf("store sweep read failed: %w", err)
		}

		var entry storeEntry
		if err := json.Unmarshal(raw, &entry); err != nil || !entry.ExpiresAt.After(now) {
			if err := s.client.Del(ctx, redisKey).Err(); err != nil {
				return deleted, fmt.Errorf("store sweep delete failed: %w", err)
			}
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("store sweep scan failed: %w", err)
	}

	return deleted, nil
}

// DeleteAll removes every row under the store's prefix. Administrative
// reset, paired with Engine.Clear.
func (s *RedisStore) DeleteAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pattern := "*"
	if s.prefix != "" {
		pattern = s.prefix + ":*"
	}

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("store clear delete failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("store clear scan failed: %w", err)
	}
	return nil
}

// Reachable probes the store with a bounded ping.
func (s *RedisStore) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err() == nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
