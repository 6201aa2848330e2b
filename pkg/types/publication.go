// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"regexp"
	"strings"
	"time"
)

// Identifier patterns for the external id tuple.
var (
	pmidPattern  = regexp.MustCompile(`^\d+$`)
	pmcidPattern = regexp.MustCompile(`^PMC\d+$`)
	doiPattern   = regexp.MustCompile(`^10\.\d+/.+`)
	arxivPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
)

// ValidPMID reports whether s is a well-formed PubMed id.
func ValidPMID(s string) bool { return pmidPattern.MatchString(s) }

// ValidPMCID reports whether s is a well-formed PubMed Central id.
func ValidPMCID(s string) bool { return pmcidPattern.MatchString(s) }

// ValidDOI reports whether s is a well-formed DOI.
func ValidDOI(s string) bool { return doiPattern.MatchString(s) }

// ValidArxivID reports whether s is a well-formed arXiv id.
func ValidArxivID(s string) bool { return arxivPattern.MatchString(s) }

// Relationship classifies how a publication relates to a dataset.
type Relationship string

const (
	RelationOriginal Relationship = "original"
	RelationCiting   Relationship = "citing"
)

// QualityBand discretizes a publication quality score.
type QualityBand string

const (
	BandExcellent  QualityBand = "excellent"
	BandGood       QualityBand = "good"
	BandAcceptable QualityBand = "acceptable"
	BandPoor       QualityBand = "poor"
	BandRejected   QualityBand = "rejected"
)

// Publication is a paper tied to one or more datasets. At least one of
// PMID, PMCID, DOI, ArxivID must be present. Identifiers are monotonic:
// they may be filled in later but never changed or removed once set.
type Publication struct {
	PMID    string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	PMCID   string `json:"pmcid,omitempty" yaml:"pmcid,omitempty"`
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID string `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`

	Title         string    `json:"title,omitempty" yaml:"title,omitempty"`
	Authors       []string  `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal       string    `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year          int       `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract      string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	CitationCount int       `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
	PublishedAt   time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	Relationship    Relationship `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	DiscoverySource string       `json:"discovery_source,omitempty" yaml:"discovery_source,omitempty"`
	QualityScore    float64      `json:"quality_score,omitempty" yaml:"quality_score,omitempty"`
	QualityBand     QualityBand  `json:"quality_band,omitempty" yaml:"quality_band,omitempty"`
}

// HasIdentifier reports whether at least one external id is present.
func (p *Publication) HasIdentifier() bool {
	return p.PMID != "" || p.PMCID != "" || p.DOI != "" || p.ArxivID != ""
}

// Key returns the filesystem- and database-safe primary key for the
// publication, derived from the first identifier in precedence order
// (pmid, doi, pmcid, arxiv). DOI separators are flattened the same way
// the registry flattens them on disk.
func (p *Publication) Key() string {
	switch {
	case p.PMID != "":
		return "pmid-" + p.PMID
	case p.DOI != "":
		return "doi-" + strings.NewReplacer("/", "-", ":", "-").Replace(p.DOI)
	case p.PMCID != "":
		return strings.ToLower(p.PMCID)
	case p.ArxivID != "":
		return "arxiv-" + p.ArxivID
	default:
		return ""
	}
}

// Merge fills empty fields of p from other without overwriting identifiers
// or metadata already present. Citation counts keep the maximum.
func (p *Publication) Merge(other *Publication) {
	if p.PMID == "" {
		p.PMID = other.PMID
	}
	if p.PMCID == "" {
		p.PMCID = other.PMCID
	}
	if p.DOI == "" {
		p.DOI = other.DOI
	}
	if p.ArxivID == "" {
		p.ArxivID = other.ArxivID
	}
	if p.Title == "" {
		p.Title = other.Title
	}
	if len(p.Authors) == 0 {
		p.Authors = other.Authors
	}
	if p.Journal == "" {
		p.Journal = other.Journal
	}
	if p.Year == 0 {
		p.Year = other.Year
	}
	if p.Abstract == "" {
		p.Abstract = other.Abstract
	}
	if other.CitationCount > p.CitationCount {
		p.CitationCount = other.CitationCount
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = other.PublishedAt
	}
}
