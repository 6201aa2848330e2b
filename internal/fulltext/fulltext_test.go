// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"testing"
	"time"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/sources"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// fakeSource satisfies sources.URLFetcher with canned responses.
type fakeSource struct {
	name  string
	urls  []types.URLCandidate
	err   error
	delay time.Duration
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return true }

func (f *fakeSource) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.urls, f.err
}

func newTestManager(timeout time.Duration, blocked bool, srcs ...sources.URLFetcher) *Manager {
	var fb sources.URLFetcher = &fakeSource{name: "openalex"}
	return &Manager{
		srcs:       srcs,
		pmcBlocked: func() bool { return blocked },
		fallback:   fb,
		timeout:    timeout,
		log:        logx.Nop(),
	}
}

func testPub() *types.Publication {
	return &types.Publication{PMID: "25186741", DOI: "10.1016/j.neuron.2014.07.040"}
}

func TestCollectURLsRanking(t *testing.T) {
	unpaywall := &fakeSource{name: "unpaywall", urls: []types.URLCandidate{
		{URL: "https://journals.example.org/article/full.pdf", Source: "unpaywall", Priority: 10},
	}}
	pmc := &fakeSource{name: "pmc", urls: []types.URLCandidate{
		{URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC4430743/pdf/", Source: "pmc", Priority: 30},
	}}
	crossref := &fakeSource{name: "crossref", urls: []types.URLCandidate{
		{URL: "https://doi.org/10.1016/j.neuron.2014.07.040", Source: "crossref", Priority: 40},
	}}

	m := newTestManager(5*time.Second, false, unpaywall, pmc, crossref)
	res := m.CollectURLs(context.Background(), testPub())

	if !res.Success {
		t.Fatal("expected success")
	}
	if len(res.URLs) != 3 {
		t.Fatalf("got %d candidates, want 3", len(res.URLs))
	}
	// direct-pdf boost (-2) keeps unpaywall first; doi-resolver (+3) last.
	if res.URLs[0].Source != "unpaywall" || res.URLs[0].Priority != 8 {
		t.Errorf("first = %s prio %d", res.URLs[0].Source, res.URLs[0].Priority)
	}
	if res.URLs[0].Type != types.URLDirectPDF {
		t.Errorf("first type = %s", res.URLs[0].Type)
	}
	if res.URLs[2].Source != "crossref" || res.URLs[2].Type != types.URLDOIResolver {
		t.Errorf("last = %s type %s", res.URLs[2].Source, res.URLs[2].Type)
	}
	for name, want := range map[string]sources.Status{
		"unpaywall": sources.StatusOK,
		"pmc":       sources.StatusOK,
		"crossref":  sources.StatusOK,
	} {
		if got := res.Statuses[name]; got != want {
			t.Errorf("status[%s] = %s, want %s", name, got, want)
		}
	}
}

func TestCollectURLsIsolatesFailures(t *testing.T) {
	good := &fakeSource{name: "unpaywall", urls: []types.URLCandidate{
		{URL: "https://journals.example.org/article/full.pdf", Source: "unpaywall", Priority: 10},
	}}
	bad := &fakeSource{name: "core", err: sources.ErrRateLimited}
	empty := &fakeSource{name: "crossref"}

	res := newTestManager(5*time.Second, false, good, bad, empty).CollectURLs(context.Background(), testPub())

	if !res.Success || len(res.URLs) != 1 {
		t.Fatalf("success=%v urls=%d", res.Success, len(res.URLs))
	}
	if res.Statuses["core"] != sources.StatusRateLimited {
		t.Errorf("core status = %s", res.Statuses["core"])
	}
	if res.Statuses["crossref"] != sources.StatusEmpty {
		t.Errorf("crossref status = %s", res.Statuses["crossref"])
	}
}

func TestCollectURLsPartialAtTimeout(t *testing.T) {
	fast := &fakeSource{name: "unpaywall", urls: []types.URLCandidate{
		{URL: "https://journals.example.org/article/full.pdf", Source: "unpaywall", Priority: 10},
	}}
	slow := &fakeSource{name: "core", delay: 2 * time.Second, urls: []types.URLCandidate{
		{URL: "https://repo.example.org/paper.pdf", Source: "core", Priority: 50},
	}}

	start := time.Now()
	res := newTestManager(100*time.Millisecond, false, fast, slow).CollectURLs(context.Background(), testPub())

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("batch overran its budget: %v", elapsed)
	}
	if !res.Success || len(res.URLs) != 1 {
		t.Fatalf("success=%v urls=%d", res.Success, len(res.URLs))
	}
	if res.Statuses["core"] != sources.StatusTransient {
		t.Errorf("slow source status = %s", res.Statuses["core"])
	}
}

func TestCollectURLsNoCandidates(t *testing.T) {
	res := newTestManager(time.Second, false, &fakeSource{name: "unpaywall"}).
		CollectURLs(context.Background(), testPub())
	if res.Success {
		t.Fatal("expected success=false with zero candidates")
	}
}

func TestRankDeduplicates(t *testing.T) {
	urls := []types.URLCandidate{
		{URL: "https://journals.example.org/a.pdf?utm_source=feed", Source: "openalex", Priority: 20},
		{URL: "https://journals.example.org/a.pdf", Source: "unpaywall", Priority: 10},
	}
	out := rank(urls)
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1 after dedupe", len(out))
	}
	// The lower adjusted priority wins the slot.
	if out[0].Source != "unpaywall" || out[0].Priority != 8 {
		t.Errorf("kept %s prio %d", out[0].Source, out[0].Priority)
	}
}

func TestFilterBlockedStripsPMC(t *testing.T) {
	pmcOnly := []types.URLCandidate{
		{URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC4430743/pdf/", Source: "pmc", Priority: 28},
	}

	m := newTestManager(time.Second, true)
	m.fallback = &fakeSource{name: "openalex", urls: []types.URLCandidate{
		{URL: "https://journals.example.org/oa.pdf", Source: "openalex", Priority: 20},
	}}

	out := m.FilterBlocked(context.Background(), testPub(), pmcOnly)
	if len(out) != 1 || out[0].Source != "openalex" {
		t.Fatalf("expected openalex fallback, got %+v", out)
	}

	// Mixed list keeps the non-PMC candidates without a fallback call.
	mixed := append([]types.URLCandidate{
		{URL: "https://journals.example.org/a.pdf", Source: "unpaywall", Priority: 8},
	}, pmcOnly...)
	m.fallback = &fakeSource{name: "openalex", err: sources.ErrTransient}
	out = m.FilterBlocked(context.Background(), testPub(), mixed)
	if len(out) != 1 || out[0].Source != "unpaywall" {
		t.Fatalf("expected unpaywall only, got %+v", out)
	}
}

func TestFilterBlockedNoopWhenHealthy(t *testing.T) {
	urls := []types.URLCandidate{
		{URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC4430743/pdf/", Source: "pmc", Priority: 28},
	}
	out := newTestManager(time.Second, false).FilterBlocked(context.Background(), testPub(), urls)
	if len(out) != 1 {
		t.Fatalf("healthy filter dropped candidates: %+v", out)
	}
}
