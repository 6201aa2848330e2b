// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/geo-fulltext/internal/cache"
	"github.com/pdiddy/geo-fulltext/internal/discover"
	"github.com/pdiddy/geo-fulltext/internal/fulltext"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/pipeline"
	"github.com/pdiddy/geo-fulltext/internal/registry"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// pmidFor derives a deterministic per-dataset PMID so fixtures stay
// readable: GSE7 -> 1007.
func pmidFor(geoID string) string {
	return "100" + strings.TrimPrefix(geoID, "GSE")
}

type fakeMeta struct {
	mu    sync.Mutex
	delay map[string]time.Duration
}

func (f *fakeMeta) FetchDataset(ctx context.Context, geoID string) (*types.GEODataset, error) {
	f.mu.Lock()
	d := f.delay[geoID]
	f.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &types.GEODataset{GeoID: geoID, Title: "Dataset " + geoID, PubmedIDs: []string{pmidFor(geoID)}}, nil
}

func (f *fakeMeta) FetchSOFT(ctx context.Context, geoID, dir string) (string, error) {
	return "", errors.New("ftp unavailable")
}

type fakeDiscover struct {
	mu     sync.Mutex
	failOn string
	citing map[string][]*types.Publication
}

func (f *fakeDiscover) Discover(ctx context.Context, ds *types.GEODataset) (*discover.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ds.GeoID == f.failOn {
		return nil, errors.New("upstream 503")
	}
	res := &discover.Result{Citing: f.citing[ds.GeoID]}
	for _, pmid := range ds.PubmedIDs {
		res.Original = append(res.Original, &types.Publication{
			PMID:            pmid,
			Title:           "Originating paper " + pmid,
			Relationship:    types.RelationOriginal,
			DiscoverySource: "pubmed",
		})
	}
	return res, nil
}

type fakeFulltext struct{}

func (fakeFulltext) CollectURLs(ctx context.Context, pub *types.Publication) *fulltext.Result {
	return &fulltext.Result{
		Success: true,
		URLs: []types.URLCandidate{{
			URL:      "https://journals.example.org/" + pub.Key() + ".pdf",
			Source:   "unpaywall",
			Type:     types.URLDirectPDF,
			Priority: 8,
		}},
	}
}

func (fakeFulltext) FilterBlocked(ctx context.Context, pub *types.Publication, urls []types.URLCandidate) []types.URLCandidate {
	return urls
}

type fakeDownload struct {
	mu     sync.Mutex
	perPub map[string]int
}

func (f *fakeDownload) Download(ctx context.Context, geoID string, rel types.Relationship, pub *types.Publication, cands []types.URLCandidate) *types.DownloadResult {
	f.mu.Lock()
	if f.perPub == nil {
		f.perPub = map[string]int{}
	}
	f.perPub[pub.Key()]++
	f.mu.Unlock()
	a := types.DownloadAttempt{
		PubKey:    pub.Key(),
		URL:       cands[0].URL,
		Source:    cands[0].Source,
		Status:    types.AttemptSuccess,
		FilePath:  "/pdfs/" + pub.Key() + ".pdf",
		FileSize:  2048,
		SHA256:    "abc123",
		Timestamp: time.Now().UTC(),
	}
	return &types.DownloadResult{Success: true, FilePath: a.FilePath, SHA256: a.SHA256, Attempts: []types.DownloadAttempt{a}}
}

type fakeParse struct{}

func (fakeParse) Extract(path string) (*types.ParsedContent, error) {
	return &types.ParsedContent{
		Sections:      map[string]string{types.SectionAbstract: "We profile astrocytes."},
		ContentSHA256: "feed" + path[len(path)-9:],
		QualityScore:  0.8,
		Parser:        "ledongthuc-pdf",
		PageCount:     3,
		ParsedAt:      time.Now().UTC(),
	}, nil
}

type fixture struct {
	meta *fakeMeta
	disc *fakeDiscover
	down *fakeDownload
	svc  *Service
}

func newFixture(t *testing.T, mutate func(*types.Config)) *fixture {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	reg, err := registry.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })

	f := &fixture{
		meta: &fakeMeta{delay: map[string]time.Duration{}},
		disc: &fakeDiscover{citing: map[string][]*types.Publication{}},
		down: &fakeDownload{},
	}
	coord := pipeline.New(pipeline.Deps{
		Metadata:  f.meta,
		Discovery: f.disc,
		Fulltext:  fakeFulltext{},
		Download:  f.down,
		Parse:     fakeParse{},
	}, reg, cache.New(cfg, nil, logx.Nop()), cfg, logx.Nop())
	f.svc = New(coord, cfg, logx.Nop())
	return f
}

func request(level types.CompletenessLevel, geoIDs ...string) *types.EnrichRequest {
	req := &types.EnrichRequest{DesiredLevel: level}
	for _, id := range geoIDs {
		req.Datasets = append(req.Datasets, types.DatasetSeed{GeoID: id})
	}
	return req
}

func TestResponseOrderMatchesRequest(t *testing.T) {
	f := newFixture(t, nil)
	// The first dataset finishes last.
	f.meta.delay["GSE1"] = 150 * time.Millisecond

	resp, err := f.svc.Enrich(context.Background(), request(types.LevelFullyEnriched, "GSE1", "GSE2", "GSE3"))
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	for i, want := range []string{"GSE1", "GSE2", "GSE3"} {
		if resp.Datasets[i].GeoID != want {
			t.Errorf("datasets[%d] = %s, want %s", i, resp.Datasets[i].GeoID, want)
		}
	}
	if len(resp.Errors) != 0 {
		t.Errorf("errors = %v", resp.Errors)
	}
}

func TestFailureIsolatedToItsDataset(t *testing.T) {
	f := newFixture(t, nil)
	f.disc.failOn = "GSE2"

	resp, err := f.svc.Enrich(context.Background(), request(types.LevelFullyEnriched, "GSE1", "GSE2"))
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if resp.Datasets[0].Level != "fully_enriched" {
		t.Errorf("healthy dataset level = %s", resp.Datasets[0].Level)
	}
	// The failed dataset keeps its partial snapshot.
	if resp.Datasets[1].Level != "metadata_only" {
		t.Errorf("failed dataset level = %s", resp.Datasets[1].Level)
	}
	if _, ok := resp.Errors["GSE2"]; !ok || len(resp.Errors) != 1 {
		t.Errorf("errors = %v", resp.Errors)
	}
}

func TestSharedPublicationDownloadedOnce(t *testing.T) {
	f := newFixture(t, func(cfg *types.Config) {
		cfg.Pipeline.DatasetConcurrency = 1
	})
	shared := func() []*types.Publication {
		return []*types.Publication{{
			PMID:            "400",
			Title:           "Paper citing both datasets",
			Relationship:    types.RelationCiting,
			DiscoverySource: "openalex",
			QualityBand:     types.BandGood,
		}}
	}
	f.disc.citing["GSE1"] = shared()
	f.disc.citing["GSE2"] = shared()

	resp, err := f.svc.Enrich(context.Background(), request(types.LevelFullyEnriched, "GSE1", "GSE2"))
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if f.down.perPub["pmid-400"] != 1 {
		t.Errorf("shared publication downloaded %d times", f.down.perPub["pmid-400"])
	}
	// Both snapshots still surface it with the same pdf.
	for _, snap := range resp.Datasets {
		found := false
		for _, rec := range snap.Publications {
			if rec.PMID == "400" && rec.PDFPath != "" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s missing shared publication pdf", snap.GeoID)
		}
	}
}

func TestNoCrossDatasetContamination(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := f.svc.Enrich(context.Background(), request(types.LevelFullyEnriched, "GSE1", "GSE2"))
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	for i, other := range []string{pmidFor("GSE2"), pmidFor("GSE1")} {
		for _, rec := range resp.Datasets[i].Publications {
			if rec.PMID == other {
				t.Errorf("%s carries %s's originating paper", resp.Datasets[i].GeoID, other)
			}
		}
	}
}

func TestProgressEvents(t *testing.T) {
	f := newFixture(t, nil)
	events, cancel := f.svc.Subscribe(64)
	defer cancel()

	if _, err := f.svc.Enrich(context.Background(), request(types.LevelFullyEnriched, "GSE1")); err != nil {
		t.Fatal(err)
	}

	seen := map[string]types.StageStatus{}
	for len(events) > 0 {
		ev := <-events
		seen[ev.Stage] = ev.Status
	}
	for _, stage := range []string{
		pipeline.StageMetadata, pipeline.StageCitations, pipeline.StageURLs,
		pipeline.StagePDFs, pipeline.StageParse,
	} {
		if seen[stage] != types.StageSucceeded {
			t.Errorf("stage %s status = %s", stage, seen[stage])
		}
	}
}

func TestDesiredLevelDefaultsFromConfig(t *testing.T) {
	f := newFixture(t, func(cfg *types.Config) {
		cfg.DesiredLevelDefault = "with_citations"
	})

	resp, err := f.svc.Enrich(context.Background(), request(types.LevelNew, "GSE1"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Datasets[0].Level != "with_citations" {
		t.Errorf("level = %s", resp.Datasets[0].Level)
	}
}

func TestEmptyRequestRejected(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.Enrich(context.Background(), &types.EnrichRequest{}); err == nil {
		t.Error("expected error for empty request")
	}
	if _, err := f.svc.Enrich(context.Background(), &types.EnrichRequest{
		Datasets: []types.DatasetSeed{{}},
	}); err == nil {
		t.Error("expected error for missing geo id")
	}
}
