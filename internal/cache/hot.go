// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of go-redis the hot tier actually uses. Tests
// satisfy it with a miniredis-backed client.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

var _ RedisClient = (*redis.Client)(nil)

// Key namespaces. Keep in sync with the invalidation patterns the CLI
// documents.
func KeyGEO(geoID string) string       { return "geo:" + geoID }
func KeyPub(pubKey string) string      { return "pub:" + pubKey }
func KeyParsed(sha string) string      { return "parsed:" + sha }
func KeySearch(query string) string    { return "search:" + query }
func KeyDiscovery(geoID string) string { return "discovery:" + geoID }

// Hot is the short-TTL projection layer. Every method degrades to a miss
// on any redis error; consumers always fall back to the warm tier.
type Hot struct {
	client RedisClient

	hits   atomic.Int64
	misses atomic.Int64
}

// NewHot wraps a redis client.
func NewHot(client RedisClient) *Hot {
	return &Hot{client: client}
}

// GetJSON loads and decodes a key. A decode failure counts as a miss;
// the stale value is left for the next Put to overwrite.
func (h *Hot) GetJSON(ctx context.Context, key string, out any) bool {
	data, err := h.client.Get(ctx, key).Result()
	if err != nil {
		h.misses.Add(1)
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		h.misses.Add(1)
		return false
	}
	h.hits.Add(1)
	return true
}

// PutJSON stores a value best-effort with the given TTL.
func (h *Hot) PutJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.client.Set(ctx, key, string(data), ttl)
}

// Invalidate deletes every key matching the glob pattern and returns the
// count removed.
func (h *Hot) Invalidate(ctx context.Context, pattern string) (int, error) {
	var removed int
	var cursor uint64
	for {
		keys, next, err := h.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := h.client.Del(ctx, keys...).Result()
			removed += int(n)
			if err != nil {
				return removed, err
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// Ping checks liveness.
func (h *Hot) Ping(ctx context.Context) error {
	if h == nil {
		return errors.New("hot tier disabled")
	}
	return h.client.Ping(ctx).Err()
}

// HitRate returns hits, misses, and the hit fraction since start.
func (h *Hot) HitRate() (hits, misses int64, rate float64) {
	hits, misses = h.hits.Load(), h.misses.Load()
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return hits, misses, rate
}
