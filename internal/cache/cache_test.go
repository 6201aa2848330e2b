// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/geo-fulltext/internal/discover"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := types.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	return New(cfg, client, logx.Nop()), mr
}

func sampleParsed() *types.ParsedContent {
	return &types.ParsedContent{
		Sections:      map[string]string{types.SectionAbstract: "We profile astrocytes."},
		ContentSHA256: "deadbeef00",
		QualityScore:  0.7,
		Parser:        "ledongthuc-pdf",
		ParsedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestParsedRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.PutParsed(ctx, sampleParsed()); err != nil {
		t.Fatalf("PutParsed: %v", err)
	}

	got, err := c.GetParsed(ctx, "deadbeef00")
	if err != nil {
		t.Fatalf("GetParsed: %v", err)
	}
	if got == nil || got.Sections[types.SectionAbstract] != "We profile astrocytes." {
		t.Errorf("got %+v", got)
	}

	// The warm file must exist gzipped under the hash.
	if _, err := os.Stat(filepath.Join(c.cfg.StorageRoot, "parsed", "deadbeef00.json.gz")); err != nil {
		t.Errorf("warm file missing: %v", err)
	}
}

func TestParsedWarmFallback(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.PutParsed(ctx, sampleParsed()); err != nil {
		t.Fatal(err)
	}
	mr.FlushAll() // hot tier lost

	got, err := c.GetParsed(ctx, "deadbeef00")
	if err != nil || got == nil {
		t.Fatalf("warm fallback failed: %v, %v", got, err)
	}
	// The read must have repopulated the hot tier.
	if !mr.Exists(KeyParsed("deadbeef00")) {
		t.Error("hot tier not repopulated after warm read")
	}
}

func TestGetParsedMissing(t *testing.T) {
	c, _ := newTestCache(t)
	got, err := c.GetParsed(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("missing hash: got %v, err %v", got, err)
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ds := &types.GEODataset{GeoID: "GSE52564", Title: "Brain transcriptome", Organism: "Mus musculus"}
	c.PutDataset(ctx, ds)

	got, ok := c.GetDataset(ctx, "GSE52564")
	if !ok || got.Organism != "Mus musculus" {
		t.Errorf("got %+v ok=%v", got, ok)
	}
	if _, ok := c.GetDataset(ctx, "GSE1"); ok {
		t.Error("unexpected hit")
	}
}

func TestDiscoveryRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	res := &discover.Result{
		Citing:              []*types.Publication{{PMID: "400", Title: "Citing paper"}},
		SourceContributions: map[string]int{"openalex": 1},
	}
	c.PutDiscovery(ctx, "GSE52564", res)

	got, ok := c.GetDiscovery(ctx, "GSE52564")
	if !ok || len(got.Citing) != 1 || got.Citing[0].PMID != "400" {
		t.Errorf("got %+v ok=%v", got, ok)
	}
}

func TestInvalidatePattern(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.PutDataset(ctx, &types.GEODataset{GeoID: "GSE18901"})
	c.PutDataset(ctx, &types.GEODataset{GeoID: "GSE18902"})
	c.PutDataset(ctx, &types.GEODataset{GeoID: "GSE52564"})

	removed, err := c.Invalidate(ctx, "geo:GSE189*")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if !mr.Exists(KeyGEO("GSE52564")) {
		t.Error("unmatched key was deleted")
	}
}

func TestHotTierDisabled(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	c := New(cfg, nil, logx.Nop())
	ctx := context.Background()

	if err := c.PutParsed(ctx, sampleParsed()); err != nil {
		t.Fatalf("warm-only PutParsed: %v", err)
	}
	got, err := c.GetParsed(ctx, "deadbeef00")
	if err != nil || got == nil {
		t.Fatalf("warm-only GetParsed: %v, %v", got, err)
	}
	if _, ok := c.GetDataset(ctx, "GSE52564"); ok {
		t.Error("dataset hit without hot tier")
	}

	h := c.HealthCheck(ctx)
	if !h.Healthy() || h.HotError != "disabled" {
		t.Errorf("health = %+v", h)
	}
}

func TestStatsAndHealth(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.PutParsed(ctx, sampleParsed()); err != nil {
		t.Fatal(err)
	}
	c.GetParsed(ctx, "deadbeef00") // hot hit
	c.GetDataset(ctx, "GSE1")      // hot miss

	s := c.Stats()
	if !s.HotEnabled || s.HotHits == 0 || s.HotMisses == 0 {
		t.Errorf("stats = %+v", s)
	}
	if s.ParsedEntries != 1 || s.ParsedBytes == 0 {
		t.Errorf("parsed stats = %+v", s)
	}

	h := c.HealthCheck(ctx)
	if !h.Healthy() || !h.HotOK || !h.WarmWritable {
		t.Errorf("health = %+v", h)
	}
}

func TestCleanupSOFT(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "GSE1_family.soft.gz")
	fresh := filepath.Join(dir, "GSE2_family.soft.gz")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("soft"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-120 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	// Dry run reports without deleting.
	report, err := CleanupSOFT(dir, 90*24*time.Hour, true)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 || !report.DryRun {
		t.Errorf("dry-run report = %+v", report)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatal("dry run deleted a file")
	}

	report, err = CleanupSOFT(dir, 90*24*time.Hour, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 || report.FreedBytes == 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale file survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file deleted")
	}
}
