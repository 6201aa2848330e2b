// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain records and configuration shared by all
// pipeline stages.
package types

import (
	"fmt"
	"regexp"
	"time"
)

// accessionPattern matches GEO series accessions: "GSE52564".
var accessionPattern = regexp.MustCompile(`^GSE\d+$`)

// ValidAccession reports whether s is a well-formed GEO series accession.
func ValidAccession(s string) bool {
	return accessionPattern.MatchString(s)
}

// GEODataset is the canonical record for a GEO series. GeoID is immutable
// and globally unique; the remaining fields are populated by registry
// seeding and refreshed by citation discovery.
type GEODataset struct {
	GeoID          string    `json:"geo_id" yaml:"geo_id"`
	Title          string    `json:"title,omitempty" yaml:"title,omitempty"`
	Summary        string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Organism       string    `json:"organism,omitempty" yaml:"organism,omitempty"`
	Platform       string    `json:"platform,omitempty" yaml:"platform,omitempty"`
	SampleCount    int       `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`
	SubmissionDate time.Time `json:"submission_date,omitempty" yaml:"submission_date,omitempty"`
	PublishDate    time.Time `json:"publish_date,omitempty" yaml:"publish_date,omitempty"`

	// PubmedIDs holds the primary PMIDs GEO associates with the series.
	PubmedIDs []string `json:"pubmed_ids,omitempty" yaml:"pubmed_ids,omitempty"`
}

// CompletenessLevel is the ordered enrichment ladder for a dataset.
// Levels only move upward; regression requires explicit invalidation.
type CompletenessLevel int

const (
	LevelNew CompletenessLevel = iota
	LevelMetadataOnly
	LevelWithCitations
	LevelWithURLs
	LevelWithPDFs
	LevelFullyEnriched
)

func (l CompletenessLevel) String() string {
	switch l {
	case LevelMetadataOnly:
		return "metadata_only"
	case LevelWithCitations:
		return "with_citations"
	case LevelWithURLs:
		return "with_urls"
	case LevelWithPDFs:
		return "with_pdfs"
	case LevelFullyEnriched:
		return "fully_enriched"
	default:
		return "new"
	}
}

// ParseLevel converts a level name to its CompletenessLevel.
func ParseLevel(s string) (CompletenessLevel, error) {
	switch s {
	case "new":
		return LevelNew, nil
	case "metadata_only":
		return LevelMetadataOnly, nil
	case "with_citations":
		return LevelWithCitations, nil
	case "with_urls":
		return LevelWithURLs, nil
	case "with_pdfs":
		return LevelWithPDFs, nil
	case "fully_enriched":
		return LevelFullyEnriched, nil
	default:
		return LevelNew, fmt.Errorf("unknown completeness level %q", s)
	}
}

// StageStatus is the persisted outcome of the latest attempt at a stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StagePoisoned  StageStatus = "poisoned"
)

// StageState is the per-(dataset, stage) record driving smart re-enrichment.
type StageState struct {
	GeoID         string      `json:"geo_id"`
	Stage         string      `json:"stage"`
	Status        StageStatus `json:"status"`
	LastAttemptAt time.Time   `json:"last_attempt_at"`
	RetryCount    int         `json:"retry_count"`
	LastError     string      `json:"last_error,omitempty"`
}
