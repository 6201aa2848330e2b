// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext collects ranked full-text URL candidates for a
// publication by fanning out across every enabled source, classifying
// each returned URL, and ordering the result into the download waterfall.
package fulltext

import (
	"context"
	"sort"
	"time"

	"github.com/pdiddy/geo-fulltext/internal/classify"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/sources"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Result is one URL-collection run. Success is false only when zero
// candidates were produced; a degraded set still counts as success and
// Statuses carries the per-source diagnostics either way.
type Result struct {
	Success  bool                      `json:"success"`
	URLs     []types.URLCandidate      `json:"all_urls"`
	Statuses map[string]sources.Status `json:"errors,omitempty"`
}

// Manager runs the P2 collection batch.
type Manager struct {
	srcs       []sources.URLFetcher
	pmcBlocked func() bool
	fallback   sources.URLFetcher
	timeout    time.Duration
	log        logx.Logger
}

// NewManager builds the collection manager on the source registry.
func NewManager(sm *sources.Manager, cfg types.FulltextConfig, log logx.Logger) *Manager {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		srcs:       sm.URLSources(),
		pmcBlocked: sm.PMCBlocked,
		fallback:   sm.OpenAlex(),
		timeout:    timeout,
		log:        log.WithSource("fulltext"),
	}
}

type srcResult struct {
	idx  int
	name string
	urls []types.URLCandidate
	err  error
}

// CollectURLs fans out fetch calls across all enabled sources with the
// batch budget, accepting partial results at timeout. Candidates are
// normalized, classified, deduplicated, and returned in waterfall order.
func (m *Manager) CollectURLs(ctx context.Context, pub *types.Publication) *Result {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ch := make(chan srcResult, len(m.srcs))
	for i, src := range m.srcs {
		go func(i int, src sources.URLFetcher) {
			urls, err := src.FetchURLs(ctx, pub)
			ch <- srcResult{idx: i, name: src.Name(), urls: urls, err: err}
		}(i, src)
	}

	res := &Result{Statuses: make(map[string]sources.Status, len(m.srcs))}
	bySource := make([][]types.URLCandidate, len(m.srcs))
	received := 0
collect:
	for received < len(m.srcs) {
		select {
		case r := <-ch:
			received++
			switch {
			case r.err != nil:
				res.Statuses[r.name] = sources.StatusOf(r.err)
			case len(r.urls) == 0:
				res.Statuses[r.name] = sources.StatusEmpty
			default:
				res.Statuses[r.name] = sources.StatusOK
				bySource[r.idx] = r.urls
			}
		case <-ctx.Done():
			break collect
		}
	}
	// Sources that missed the budget are transient; their goroutines drain
	// into the buffered channel and are dropped.
	for _, src := range m.srcs {
		if _, ok := res.Statuses[src.Name()]; !ok {
			res.Statuses[src.Name()] = sources.StatusTransient
		}
	}

	var all []types.URLCandidate
	for _, urls := range bySource {
		all = append(all, urls...)
	}

	res.URLs = m.FilterBlocked(ctx, pub, rank(all))
	res.Success = len(res.URLs) > 0

	if res.Success {
		m.log.OK("collected candidates", logx.F("key", pub.Key()), logx.F("count", len(res.URLs)))
	} else {
		m.log.Fail("no candidates", logx.F("key", pub.Key()))
	}
	return res
}

// FilterBlocked strips PMC-hosted candidates while the PMC breaker is
// open. A cached PMC URL is never trusted alone: when stripping empties
// the list, one OpenAlex lookup fills the gap. Also applied to candidate
// lists replayed from the registry.
func (m *Manager) FilterBlocked(ctx context.Context, pub *types.Publication, urls []types.URLCandidate) []types.URLCandidate {
	if !m.pmcBlocked() {
		return urls
	}

	kept := make([]types.URLCandidate, 0, len(urls))
	stripped := 0
	for _, u := range urls {
		if classify.IsPMCHost(u.URL) {
			stripped++
			continue
		}
		kept = append(kept, u)
	}
	if stripped > 0 {
		m.log.Skip("stripped candidates while blocked", logx.F("key", pub.Key()), logx.F("stripped", stripped))
	}
	if len(kept) > 0 || stripped == 0 {
		return kept
	}

	fallback, err := m.fallback.FetchURLs(ctx, pub)
	if err != nil {
		m.log.Warn("fallback lookup failed", logx.F("key", pub.Key()), logx.F("status", sources.StatusOf(err)))
		return kept
	}
	return rank(fallback)
}

// rank normalizes, classifies, deduplicates, and orders candidates. The
// sort is stable so source fan-out order breaks priority ties.
func rank(urls []types.URLCandidate) []types.URLCandidate {
	seen := make(map[string]int, len(urls))
	out := make([]types.URLCandidate, 0, len(urls))
	for _, u := range urls {
		u.URL = classify.Normalize(u.URL)
		kind, boost := classify.Classify(u.URL)
		if u.Type == "" || u.Type == types.URLUnknown {
			u.Type = kind
		}
		u.Priority += boost

		if j, dup := seen[u.URL]; dup {
			if u.Priority < out[j].Priority {
				out[j].Priority = u.Priority
				out[j].Source = u.Source
				out[j].Type = u.Type
			}
			continue
		}
		seen[u.URL] = len(out)
		out = append(out, u)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
