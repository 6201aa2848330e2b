// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Manager constructs and owns all source clients. It is the single place
// that knows which concrete sources exist; the pipeline stages only see
// capability slices.
type Manager struct {
	pubmed        *PubMedClient
	pmc           *PMCClient
	unpaywall     *UnpaywallClient
	openAlex      *OpenAlexClient
	semantic      *SemanticScholarClient
	europePMC     *EuropePMCClient
	openCitations *OpenCitationsClient
	crossref      *CrossrefClient
	arxiv         *ArxivClient
	biorxiv       *BiorxivClient
	core          *COREClient
	institutional *InstitutionalClient
	sciHub        *SciHubClient

	pmcBreaker *gobreaker.CircuitBreaker
	log        logx.Logger
}

// NewManager wires every client onto the shared transport and one limiter
// registry. E-utilities get 3 req/s without an API key, 10 with one.
func NewManager(cfg types.Config, client *http.Client, log logx.Logger) *Manager {
	ncbiRate := 3.0
	if cfg.Sources.NCBIAPIKey != "" {
		ncbiRate = 10.0
	}
	limits := httpx.NewLimiters(5, map[string]float64{
		"pubmed":           ncbiRate,
		"pmc":              ncbiRate,
		"semantic_scholar": 1,
		"opencitations":    2,
		"scihub":           0.5,
	})

	mk := func(name string, enabled bool) base {
		return base{
			name:    name,
			enabled: enabled,
			http:    client,
			limits:  limits,
			log:     log.WithSource(name),
			ua:      cfg.UserAgent,
		}
	}

	m := &Manager{
		pubmed: &PubMedClient{
			base:   mk("pubmed", true),
			apiKey: cfg.Sources.NCBIAPIKey,
			email:  cfg.Sources.NCBIContactEmail,
		},
		unpaywall: &UnpaywallClient{
			base:  mk("unpaywall", cfg.Sources.EnableUnpaywall && cfg.Sources.UnpaywallEmail != ""),
			email: cfg.Sources.UnpaywallEmail,
		},
		openAlex:      &OpenAlexClient{base: mk("openalex", cfg.Sources.EnableOpenAlex), mailto: cfg.Sources.NCBIContactEmail},
		semantic:      &SemanticScholarClient{base: mk("semantic_scholar", cfg.Sources.EnableSemantic), apiKey: cfg.Sources.SemanticScholarAPIKey},
		europePMC:     &EuropePMCClient{base: mk("europepmc", cfg.Sources.EnableEuropePMC)},
		openCitations: &OpenCitationsClient{base: mk("opencitations", cfg.Sources.EnableOpenCitations)},
		crossref:      &CrossrefClient{base: mk("crossref", cfg.Sources.EnableCrossref)},
		arxiv:         &ArxivClient{base: mk("arxiv", cfg.Sources.EnableArxiv)},
		biorxiv:       &BiorxivClient{base: mk("biorxiv", cfg.Sources.EnableBiorxiv)},
		core:          &COREClient{base: mk("core", cfg.Sources.EnableCORE && cfg.Sources.COREAPIKey != ""), apiKey: cfg.Sources.COREAPIKey},
		institutional: &InstitutionalClient{base: mk("institutional", cfg.Sources.EnableInstitutional && cfg.Sources.InstitutionalProxy != ""), proxy: cfg.Sources.InstitutionalProxy},
		sciHub:        &SciHubClient{base: mk("scihub", cfg.Sources.EnableSciHub)},
		log:           log,
	}

	// Two consecutive 403s open the breaker; PMC then counts as blocked
	// until the cool-down elapses and a probe succeeds.
	m.pmcBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "pmc",
		Timeout: 30 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})
	m.pmc = &PMCClient{base: mk("pmc", cfg.Sources.EnablePMC), breaker: m.pmcBreaker}

	return m
}

// CitationSources returns the citation-capable clients in configured
// priority order. The order also breaks discovery-source ties.
func (m *Manager) CitationSources() []CitationFetcher {
	return []CitationFetcher{m.openAlex, m.semantic, m.europePMC, m.openCitations, m.pubmed}
}

// URLSources returns the URL-capable clients.
func (m *Manager) URLSources() []URLFetcher {
	return []URLFetcher{
		m.arxiv, m.biorxiv, m.unpaywall, m.openAlex, m.pmc, m.pubmed,
		m.crossref, m.core, m.institutional, m.sciHub,
	}
}

// PubMed exposes the metadata client used by registry seeding and
// citation discovery.
func (m *Manager) PubMed() *PubMedClient { return m.pubmed }

// OpenAlex exposes the fallback client used when PMC is blocked.
func (m *Manager) OpenAlex() *OpenAlexClient { return m.openAlex }

// PMCBlocked reports whether the PMC breaker is open. Cached PMC URLs are
// never trusted alone while this holds.
func (m *Manager) PMCBlocked() bool {
	return m.pmcBreaker.State() == gobreaker.StateOpen
}

// ReportPMCOutcome feeds download results for PMC-hosted URLs into the
// breaker. blocked marks the characteristic 403.
func (m *Manager) ReportPMCOutcome(blocked bool) {
	m.pmcBreaker.Execute(func() (any, error) {
		if blocked {
			return nil, ErrPermanentDenied
		}
		return nil, nil
	})
}
