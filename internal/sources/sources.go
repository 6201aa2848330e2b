// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements one client per bibliographic provider. Each
// client declares the capabilities it supports (citations, candidate URLs,
// direct PDF links) through the interfaces below; the discovery and
// full-text stages parameterize on the capability set, never on concrete
// types.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Error kinds shared by all clients. Callers fold these into per-source
// status maps rather than aborting a stage.
var (
	ErrDisabled        = errors.New("source disabled")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrTransient       = errors.New("transient failure")
	ErrPermanentDenied = errors.New("permanently denied")
)

// Status is the per-source outcome recorded in stage diagnostics.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmpty       Status = "empty"
	StatusDisabled    Status = "disabled"
	StatusNotFound    Status = "not_found"
	StatusRateLimited Status = "rate_limited"
	StatusTransient   Status = "transient"
	StatusDenied      Status = "denied"
)

// StatusOf maps an error onto its Status. A nil error with zero results is
// the caller's StatusEmpty, not ours.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrDisabled):
		return StatusDisabled
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return StatusRateLimited
	case errors.Is(err, ErrPermanentDenied):
		return StatusDenied
	default:
		return StatusTransient
	}
}

// httpError converts a terminal status code into the matching error kind.
func httpError(source string, code int) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: HTTP 404: %w", source, ErrNotFound)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: HTTP 429: %w", source, ErrRateLimited)
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return fmt.Errorf("%s: HTTP %d: %w", source, code, ErrPermanentDenied)
	case code >= 500:
		return fmt.Errorf("%s: HTTP %d: %w", source, code, ErrTransient)
	case code >= 400:
		return fmt.Errorf("%s: HTTP %d: %w", source, code, ErrPermanentDenied)
	default:
		return nil
	}
}

// Source is the minimal contract every provider satisfies.
type Source interface {
	Name() string
	Enabled() bool
}

// CitationFetcher locates publications citing or originating a given
// publication id (PMID or DOI, provider dependent).
type CitationFetcher interface {
	Source
	FetchCitations(ctx context.Context, id string) ([]*types.Publication, error)
}

// URLFetcher returns candidate full-text URLs for a publication.
type URLFetcher interface {
	Source
	FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error)
}

// DirectPDFFetcher is implemented by providers with deterministic PDF
// endpoints (preprint servers, repositories).
type DirectPDFFetcher interface {
	Source
	FetchPDFURL(ctx context.Context, pub *types.Publication) (*types.URLCandidate, error)
}

// base carries the plumbing shared by every client.
type base struct {
	name    string
	enabled bool
	http    *http.Client
	limits  *httpx.Limiters
	log     logx.Logger
	ua      string
}

func (b *base) Name() string  { return b.name }
func (b *base) Enabled() bool { return b.enabled }

// checkEnabled is the first line of every fetch method.
func (b *base) checkEnabled() error {
	if !b.enabled {
		return fmt.Errorf("%s: %w", b.name, ErrDisabled)
	}
	return nil
}

// Base priorities per source; lower is tried first in the waterfall. The
// classifier adds its type boost on top.
var basePriority = map[string]int{
	"arxiv":         5,
	"biorxiv":       5,
	"unpaywall":     10,
	"openalex":      20,
	"pmc":           30,
	"pubmed":        35,
	"crossref":      40,
	"core":          50,
	"europepmc":     55,
	"institutional": 70,
	"scihub":        90,
	"libgen":        95,
}

// BasePriority returns the waterfall base priority for a source.
func BasePriority(source string) int {
	if p, ok := basePriority[source]; ok {
		return p
	}
	return 60
}
