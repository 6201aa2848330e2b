// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover implements citation discovery: originating papers
// come from the dataset's PubMed ids, citing papers from a parallel
// fan-out across every citation-capable source, merged and deduplicated
// into one scored publication set.
package discover

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/sources"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Result is one discovery run for a dataset.
type Result struct {
	Original            []*types.Publication      `json:"original"`
	Citing              []*types.Publication      `json:"citing"`
	SourceContributions map[string]int            `json:"source_contributions"`
	Statuses            map[string]sources.Status `json:"statuses,omitempty"`
	DuplicateRate       float64                   `json:"duplicate_rate"`
	QualitySummary      map[types.QualityBand]int `json:"quality_summary"`
}

// Cache is the discovery projection of the hot tier. Empty citing sets
// are never cached so the backoff retry path stays live.
type Cache interface {
	GetDiscovery(ctx context.Context, geoID string) (*Result, bool)
	PutDiscovery(ctx context.Context, geoID string, res *Result)
}

// ErrNoResults reports a discovery run that resolved no publications at
// all. The coordinator treats it as a transient stage failure and
// re-queries the sources on its backoff ladder.
var ErrNoResults = errors.New("discovery produced no publications")

// Manager runs the P1 stage.
type Manager struct {
	pubmed *sources.PubMedClient
	citers []sources.CitationFetcher
	cache  Cache
	cfg    types.DiscoveryConfig
	log    logx.Logger
}

// NewManager builds the discovery manager. cache may be nil when the hot
// tier is disabled.
func NewManager(sm *sources.Manager, cache Cache, cfg types.DiscoveryConfig, log logx.Logger) *Manager {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Second
	}
	return &Manager{
		pubmed: sm.PubMed(),
		citers: sm.CitationSources(),
		cache:  cache,
		cfg:    cfg,
		log:    log.WithSource("discover"),
	}
}

// Discover resolves the dataset's originating and citing publications.
// Partial source failures degrade the result instead of failing it; the
// error return fires only when not a single publication resolves.
func (m *Manager) Discover(ctx context.Context, ds *types.GEODataset) (*Result, error) {
	if m.cache != nil {
		if cached, ok := m.cache.GetDiscovery(ctx, ds.GeoID); ok {
			m.log.Skip("discovery cache hit", logx.F("geo_id", ds.GeoID))
			return cached, nil
		}
	}

	res := &Result{
		SourceContributions: map[string]int{},
		Statuses:            map[string]sources.Status{},
		QualitySummary:      map[types.QualityBand]int{},
	}

	res.Original = m.fetchOriginal(ctx, ds)
	m.fetchCiting(ctx, res)

	for _, pub := range res.Citing {
		pub.QualityScore = Score(pub)
		pub.QualityBand = Band(pub.QualityScore)
		res.QualitySummary[pub.QualityBand]++
	}

	if len(res.Original) == 0 && len(res.Citing) == 0 {
		m.log.Fail("discovery empty", logx.F("geo_id", ds.GeoID))
		return nil, fmt.Errorf("%w for %s", ErrNoResults, ds.GeoID)
	}

	m.log.OK("discovery complete", logx.F("geo_id", ds.GeoID),
		logx.F("original", len(res.Original)), logx.F("citing", len(res.Citing)))

	// Zero citing papers stays uncached: the coordinator's backoff
	// ladder drives the retry, and a cache hit would swallow it.
	if m.cache != nil && len(res.Citing) > 0 {
		m.cache.PutDiscovery(ctx, ds.GeoID, res)
	}
	return res, nil
}

// fetchOriginal hydrates each of the dataset's PMIDs, falling back to an
// ESummary lookup when the full record misses title or journal.
func (m *Manager) fetchOriginal(ctx context.Context, ds *types.GEODataset) []*types.Publication {
	var original []*types.Publication
	for _, pmid := range ds.PubmedIDs {
		pub, err := m.pubmed.FetchPublication(ctx, pmid)
		if err != nil {
			m.log.Fail("originating fetch failed", logx.F("pmid", pmid), logx.F("status", sources.StatusOf(err)))
			continue
		}
		if pub.Title == "" || pub.Journal == "" {
			if title, journal, err := m.pubmed.FetchSummary(ctx, pmid); err == nil {
				if pub.Title == "" {
					pub.Title = title
				}
				if pub.Journal == "" {
					pub.Journal = journal
				}
			}
		}
		pub.Relationship = types.RelationOriginal
		pub.DiscoverySource = m.pubmed.Name()
		original = append(original, pub)
	}
	return original
}

type citeResult struct {
	idx  int
	name string
	pubs []*types.Publication
	err  error
}

// fetchCiting fans out across the citation sources for every originating
// paper with one shared budget, then merges the union into res.Citing.
func (m *Manager) fetchCiting(ctx context.Context, res *Result) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.BatchTimeout)
	defer cancel()

	type call struct {
		idx int
		src sources.CitationFetcher
		id  string
	}
	var calls []call
	for i, src := range m.citers {
		for _, orig := range res.Original {
			id, ok := idFor(src.Name(), orig)
			if !ok {
				continue
			}
			calls = append(calls, call{idx: i, src: src, id: id})
		}
	}
	if len(calls) == 0 {
		return
	}

	ch := make(chan citeResult, len(calls))
	for _, c := range calls {
		go func(c call) {
			pubs, err := c.src.FetchCitations(ctx, c.id)
			ch <- citeResult{idx: c.idx, name: c.src.Name(), pubs: pubs, err: err}
		}(c)
	}

	bySource := make([][]*types.Publication, len(m.citers))
	received := 0
collect:
	for received < len(calls) {
		select {
		case r := <-ch:
			received++
			if r.err != nil {
				res.Statuses[r.name] = sources.StatusOf(r.err)
				continue
			}
			if _, seen := res.Statuses[r.name]; !seen || len(r.pubs) > 0 {
				if len(r.pubs) == 0 {
					res.Statuses[r.name] = sources.StatusEmpty
				} else {
					res.Statuses[r.name] = sources.StatusOK
				}
			}
			bySource[r.idx] = append(bySource[r.idx], r.pubs...)
		case <-ctx.Done():
			break collect
		}
	}
	for _, src := range m.citers {
		if _, ok := res.Statuses[src.Name()]; !ok {
			res.Statuses[src.Name()] = sources.StatusTransient
		}
	}

	m.merge(res, bySource)
}

// merge unions per-source results by (pmid | doi | normalized-title-hash)
// and tracks contributions. A publication's discovery source is the first
// source that returned it in configured priority order.
func (m *Manager) merge(res *Result, bySource [][]*types.Publication) {
	originalKeys := map[string]bool{}
	for _, pub := range res.Original {
		for _, key := range mergeKeys(pub) {
			originalKeys[key] = true
		}
	}

	index := map[string]*types.Publication{}
	total, dups := 0, 0
	for i, pubs := range bySource {
		name := m.citers[i].Name()
	next:
		for _, pub := range pubs {
			keys := mergeKeys(pub)
			if len(keys) == 0 {
				continue
			}
			for _, key := range keys {
				if originalKeys[key] {
					continue next
				}
			}
			total++

			var existing *types.Publication
			for _, key := range keys {
				if hit, ok := index[key]; ok {
					existing = hit
					break
				}
			}
			if existing != nil {
				dups++
				existing.Merge(pub)
			} else {
				pub.Relationship = types.RelationCiting
				pub.DiscoverySource = name
				res.SourceContributions[name]++
				existing = pub
				res.Citing = append(res.Citing, pub)
			}
			// Register every identifier, including ones the merge just
			// filled in, so later sources land on the same record.
			for _, key := range mergeKeys(existing) {
				index[key] = existing
			}
		}
	}
	if total > 0 {
		res.DuplicateRate = float64(dups) / float64(total)
	}
}

// idFor picks the identifier a source can answer for. DOI-indexed
// providers never see a bare PMID and vice versa.
func idFor(source string, pub *types.Publication) (string, bool) {
	switch source {
	case "openalex", "opencitations":
		return pub.DOI, pub.DOI != ""
	case "europepmc", "pubmed":
		return pub.PMID, pub.PMID != ""
	default:
		if pub.PMID != "" {
			return pub.PMID, true
		}
		return pub.DOI, pub.DOI != ""
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// mergeKeys derives every dedupe key a publication answers to: pmid,
// doi, and a hash of the normalized title.
func mergeKeys(pub *types.Publication) []string {
	var keys []string
	if pub.PMID != "" {
		keys = append(keys, "pmid:"+pub.PMID)
	}
	if pub.DOI != "" {
		keys = append(keys, "doi:"+strings.ToLower(pub.DOI))
	}
	if pub.Title != "" {
		norm := nonAlnum.ReplaceAllString(strings.ToLower(pub.Title), "")
		sum := sha256.Sum256([]byte(norm))
		keys = append(keys, "title:"+hex.EncodeToString(sum[:8]))
	}
	return keys
}
