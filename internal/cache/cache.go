// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache layers the three storage tiers: a short-TTL redis hot
// tier, the authoritative on-disk warm tier, and the cold SOFT bundle
// cache. Reads fall through hot to warm; writes land warm first, then
// best-effort hot.
package cache

import (
	"context"
	"path/filepath"

	"github.com/pdiddy/geo-fulltext/internal/discover"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Cache is the tiered facade handed to the pipeline stages.
type Cache struct {
	hot  *Hot // nil when the hot tier is disabled
	warm *Warm
	cfg  types.Config
	log  logx.Logger
}

// New builds the tiered cache. client may be nil, which disables the hot
// tier; everything then reads and writes warm only.
func New(cfg types.Config, client RedisClient, log logx.Logger) *Cache {
	c := &Cache{
		warm: NewWarm(cfg.StorageRoot),
		cfg:  cfg,
		log:  log.WithSource("cache"),
	}
	if client != nil {
		c.hot = NewHot(client)
	}
	return c
}

// SoftDir is the cold-tier directory for SOFT bundles.
func (c *Cache) SoftDir() string {
	return filepath.Join(c.cfg.StorageRoot, "cache", "soft")
}

// Warm exposes the authoritative tier for direct writes.
func (c *Cache) Warm() *Warm { return c.warm }

// GetDataset reads cached GEO metadata from the hot tier.
func (c *Cache) GetDataset(ctx context.Context, geoID string) (*types.GEODataset, bool) {
	if c.hot == nil {
		return nil, false
	}
	var ds types.GEODataset
	if !c.hot.GetJSON(ctx, KeyGEO(geoID), &ds) {
		return nil, false
	}
	return &ds, true
}

// PutDataset caches GEO metadata with the metadata TTL.
func (c *Cache) PutDataset(ctx context.Context, ds *types.GEODataset) {
	if c.hot == nil {
		return
	}
	c.hot.PutJSON(ctx, KeyGEO(ds.GeoID), ds, c.cfg.Cache.MetadataTTL)
}

// GetParsed reads parsed content: hot first, then warm with hot
// repopulation on the way out.
func (c *Cache) GetParsed(ctx context.Context, sha string) (*types.ParsedContent, error) {
	if c.hot != nil {
		var content types.ParsedContent
		if c.hot.GetJSON(ctx, KeyParsed(sha), &content) {
			return &content, nil
		}
	}
	content, err := c.warm.GetParsed(sha)
	if err != nil || content == nil {
		return content, err
	}
	if c.hot != nil {
		c.hot.PutJSON(ctx, KeyParsed(sha), content, c.cfg.Cache.ParsedTTL)
	}
	return content, nil
}

// PutParsed writes parsed content warm-first, then best-effort hot.
func (c *Cache) PutParsed(ctx context.Context, content *types.ParsedContent) error {
	if err := c.warm.PutParsed(content); err != nil {
		return err
	}
	if c.hot != nil {
		c.hot.PutJSON(ctx, KeyParsed(content.ContentSHA256), content, c.cfg.Cache.ParsedTTL)
	}
	return nil
}

// GetDiscovery implements discover.Cache.
func (c *Cache) GetDiscovery(ctx context.Context, geoID string) (*discover.Result, bool) {
	if c.hot == nil {
		return nil, false
	}
	var res discover.Result
	if !c.hot.GetJSON(ctx, KeyDiscovery(geoID), &res) {
		return nil, false
	}
	return &res, true
}

// PutDiscovery implements discover.Cache.
func (c *Cache) PutDiscovery(ctx context.Context, geoID string, res *discover.Result) {
	if c.hot == nil {
		return
	}
	c.hot.PutJSON(ctx, KeyDiscovery(geoID), res, c.cfg.Discovery.CacheTTL)
}

// Invalidate removes hot keys matching the glob pattern.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	if c.hot == nil {
		return 0, nil
	}
	return c.hot.Invalidate(ctx, pattern)
}

// Stats is the operational snapshot the CLI renders.
type Stats struct {
	HotEnabled bool    `json:"hot_enabled"`
	HotHits    int64   `json:"hot_hits"`
	HotMisses  int64   `json:"hot_misses"`
	HotHitRate float64 `json:"hot_hit_rate"`

	ParsedEntries int   `json:"parsed_entries"`
	ParsedBytes   int64 `json:"parsed_bytes"`
	SoftEntries   int   `json:"soft_entries"`
	SoftBytes     int64 `json:"soft_bytes"`
}

// Stats gathers counters across the tiers.
func (c *Cache) Stats() Stats {
	s := Stats{HotEnabled: c.hot != nil}
	if c.hot != nil {
		s.HotHits, s.HotMisses, s.HotHitRate = c.hot.HitRate()
	}
	s.ParsedEntries, s.ParsedBytes = c.warm.ParsedStats()
	s.SoftEntries, s.SoftBytes = SOFTStats(c.SoftDir())
	return s
}

// Health is the health-check surface.
type Health struct {
	HotOK        bool   `json:"hot_ok"`
	HotError     string `json:"hot_error,omitempty"`
	WarmWritable bool   `json:"warm_writable"`
}

// HealthCheck probes each tier.
func (c *Cache) HealthCheck(ctx context.Context) Health {
	h := Health{WarmWritable: c.warm.Writable()}
	if c.hot == nil {
		h.HotError = "disabled"
		return h
	}
	if err := c.hot.Ping(ctx); err != nil {
		h.HotError = err.Error()
		return h
	}
	h.HotOK = true
	return h
}

// Healthy reports whether every enabled tier passed.
func (h Health) Healthy() bool {
	if !h.WarmWritable {
		return false
	}
	return h.HotOK || h.HotError == "disabled"
}
