// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/sources"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

func testLogger() logx.Logger { return logx.Nop() }

// fakeCiter satisfies sources.CitationFetcher with canned responses.
type fakeCiter struct {
	name  string
	pubs  []*types.Publication
	err   error
	delay time.Duration
}

func (f *fakeCiter) Name() string  { return f.name }
func (f *fakeCiter) Enabled() bool { return true }

func (f *fakeCiter) FetchCitations(ctx context.Context, id string) ([]*types.Publication, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.pubs, f.err
}

func newTestResult(pmid string) *Result {
	return &Result{
		Original: []*types.Publication{
			{PMID: pmid, DOI: "10.1016/orig", Relationship: types.RelationOriginal},
		},
		SourceContributions: map[string]int{},
		Statuses:            map[string]sources.Status{},
		QualitySummary:      map[types.QualityBand]int{},
	}
}

func TestDiscoverEmptyRunReturnsError(t *testing.T) {
	m := &Manager{
		citers: []sources.CitationFetcher{&fakeCiter{name: "openalex"}},
		cfg:    types.DiscoveryConfig{BatchTimeout: time.Second},
		log:    testLogger(),
	}

	// No PMIDs, so nothing originating resolves and no citing fan-out runs.
	_, err := m.Discover(context.Background(), &types.GEODataset{GeoID: "GSE99999"})
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}

func TestFetchCitingMergesAcrossIDKinds(t *testing.T) {
	// The same paper: openalex reports it by DOI, pubmed by PMID+DOI.
	byDOI := &types.Publication{DOI: "10.1038/shared", Title: "Shared paper", CitationCount: 12}
	byPMID := &types.Publication{PMID: "400", DOI: "10.1038/shared", Title: "Shared paper", Abstract: "Long abstract."}

	m := &Manager{
		citers: []sources.CitationFetcher{
			&fakeCiter{name: "openalex", pubs: []*types.Publication{byDOI}},
			&fakeCiter{name: "pubmed", pubs: []*types.Publication{byPMID}},
		},
		cfg: types.DiscoveryConfig{BatchTimeout: 5 * time.Second},
		log: testLogger(),
	}

	res := newTestResult("100")
	m.fetchCiting(context.Background(), res)

	if len(res.Citing) != 1 {
		t.Fatalf("citing = %d, want 1 after merge", len(res.Citing))
	}
	got := res.Citing[0]
	if got.DiscoverySource != "openalex" {
		t.Errorf("discovery source = %s, want first source", got.DiscoverySource)
	}
	if got.PMID != "400" || got.CitationCount != 12 || got.Abstract == "" {
		t.Errorf("merge lost fields: %+v", got)
	}
	if res.DuplicateRate != 0.5 {
		t.Errorf("duplicate rate = %f, want 0.5", res.DuplicateRate)
	}
	if res.SourceContributions["openalex"] != 1 || res.SourceContributions["pubmed"] != 0 {
		t.Errorf("contributions = %v", res.SourceContributions)
	}
}

func TestFetchCitingExcludesOriginal(t *testing.T) {
	m := &Manager{
		citers: []sources.CitationFetcher{
			&fakeCiter{name: "openalex", pubs: []*types.Publication{
				{DOI: "10.1016/orig", Title: "The originating paper itself"},
				{DOI: "10.1038/citing", Title: "A citing paper"},
			}},
		},
		cfg: types.DiscoveryConfig{BatchTimeout: 5 * time.Second},
		log: testLogger(),
	}

	res := newTestResult("100")
	m.fetchCiting(context.Background(), res)

	if len(res.Citing) != 1 || res.Citing[0].DOI != "10.1038/citing" {
		t.Fatalf("citing = %+v", res.Citing)
	}
}

func TestFetchCitingPartialAtTimeout(t *testing.T) {
	fast := &fakeCiter{name: "europepmc", pubs: []*types.Publication{{PMID: "401", Title: "Fast"}}}
	slow := &fakeCiter{name: "opencitations", delay: 2 * time.Second}

	m := &Manager{
		citers: []sources.CitationFetcher{fast, slow},
		cfg:    types.DiscoveryConfig{BatchTimeout: 100 * time.Millisecond},
		log:    testLogger(),
	}

	res := newTestResult("100")
	start := time.Now()
	m.fetchCiting(context.Background(), res)

	if time.Since(start) > time.Second {
		t.Fatal("fan-out overran its budget")
	}
	if len(res.Citing) != 1 {
		t.Fatalf("citing = %d, want the fast source's result", len(res.Citing))
	}
	if res.Statuses["opencitations"] != sources.StatusTransient {
		t.Errorf("slow source status = %s", res.Statuses["opencitations"])
	}
}

func TestFetchCitingIsolatesFailures(t *testing.T) {
	m := &Manager{
		citers: []sources.CitationFetcher{
			&fakeCiter{name: "openalex", err: sources.ErrRateLimited},
			&fakeCiter{name: "europepmc", pubs: []*types.Publication{{PMID: "402", Title: "Ok"}}},
		},
		cfg: types.DiscoveryConfig{BatchTimeout: 5 * time.Second},
		log: testLogger(),
	}

	res := newTestResult("100")
	m.fetchCiting(context.Background(), res)

	if len(res.Citing) != 1 {
		t.Fatalf("citing = %d", len(res.Citing))
	}
	if res.Statuses["openalex"] != sources.StatusRateLimited {
		t.Errorf("openalex status = %s", res.Statuses["openalex"])
	}
}

func TestIDFor(t *testing.T) {
	pub := &types.Publication{PMID: "100", DOI: "10.1016/x"}
	tests := []struct {
		source string
		want   string
	}{
		{"openalex", "10.1016/x"},
		{"opencitations", "10.1016/x"},
		{"europepmc", "100"},
		{"pubmed", "100"},
		{"semantic_scholar", "100"},
	}
	for _, tt := range tests {
		got, ok := idFor(tt.source, pub)
		if !ok || got != tt.want {
			t.Errorf("idFor(%s) = %q, %v", tt.source, got, ok)
		}
	}
	if _, ok := idFor("openalex", &types.Publication{PMID: "100"}); ok {
		t.Error("openalex should be skipped without a DOI")
	}
}

func TestMergeKeysTitleFallback(t *testing.T) {
	a := mergeKeys(&types.Publication{Title: "The  Brain Atlas: v2"})
	b := mergeKeys(&types.Publication{Title: "the brain atlas v2"})
	if len(a) != 1 || len(b) != 1 || a[0] != b[0] {
		t.Errorf("normalized title keys differ: %v vs %v", a, b)
	}
	if !strings.HasPrefix(a[0], "title:") {
		t.Errorf("key = %s", a[0])
	}
}

func TestScoreAndBand(t *testing.T) {
	rich := &types.Publication{
		Abstract:      strings.Repeat("a", 1200),
		CitationCount: 80,
		Journal:       "Nature",
		Year:          time.Now().Year(),
	}
	if got := Score(rich); got < 0.95 {
		t.Errorf("rich score = %f", got)
	}
	if Band(Score(rich)) != types.BandExcellent {
		t.Errorf("rich band = %s", Band(Score(rich)))
	}

	bare := &types.Publication{DOI: "10.1/only"}
	if got := Score(bare); got != 0 {
		t.Errorf("bare score = %f", got)
	}
	if Band(0) != types.BandRejected {
		t.Errorf("zero band = %s", Band(0))
	}

	// Monotone thresholds.
	prev := types.BandRejected
	order := map[types.QualityBand]int{
		types.BandRejected: 0, types.BandPoor: 1, types.BandAcceptable: 2,
		types.BandGood: 3, types.BandExcellent: 4,
	}
	for s := 0.0; s <= 1.0; s += 0.05 {
		b := Band(s)
		if order[b] < order[prev] {
			t.Fatalf("band regressed at score %f", s)
		}
		prev = b
	}
}
