// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DatasetSeed identifies a dataset to enrich. GeoID is required; the other
// fields are hints that seed the registry without an extra metadata fetch.
type DatasetSeed struct {
	GeoID     string   `json:"geo_id"`
	Title     string   `json:"title,omitempty"`
	PubmedIDs []string `json:"pubmed_ids,omitempty"`
	Organism  string   `json:"organism,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

// EnrichRequest asks the boundary service to raise datasets to a level.
type EnrichRequest struct {
	Datasets            []DatasetSeed     `json:"datasets"`
	DesiredLevel        CompletenessLevel `json:"desired_level"`
	MaxPapersPerDataset int               `json:"max_papers_per_dataset,omitempty"`
}

// EnrichResponse carries the per-dataset snapshots in request order.
// Errors maps geo ids to the stage failure that stopped their ladder;
// the snapshot for such a dataset still reflects the level it reached.
type EnrichResponse struct {
	Datasets []DatasetSnapshot `json:"datasets"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// PublicationRecord is a publication as surfaced to consumers, including
// its download history and parsed summary when available.
type PublicationRecord struct {
	PMID            string            `json:"pmid,omitempty"`
	DOI             string            `json:"doi,omitempty"`
	PMCID           string            `json:"pmcid,omitempty"`
	ArxivID         string            `json:"arxiv_id,omitempty"`
	Title           string            `json:"title,omitempty"`
	Authors         []string          `json:"authors,omitempty"`
	Journal         string            `json:"journal,omitempty"`
	Year            int               `json:"year,omitempty"`
	PaperType       Relationship      `json:"paper_type"`
	QualityBand     QualityBand       `json:"quality_band,omitempty"`
	PDFPath         string            `json:"pdf_path,omitempty"`
	SHA256          string            `json:"sha256,omitempty"`
	Parsed          *ParsedSummary    `json:"parsed,omitempty"`
	DownloadHistory []DownloadAttempt `json:"download_history,omitempty"`
}

// DatasetStatistics aggregates per-dataset acquisition outcomes.
type DatasetStatistics struct {
	Original            int     `json:"original"`
	Citing              int     `json:"citing"`
	SuccessfulDownloads int     `json:"successful_downloads"`
	FailedDownloads     int     `json:"failed_downloads"`
	SuccessRate         float64 `json:"success_rate"`
}

// DatasetSnapshot is the complete per-dataset view: metadata, publications,
// full-text status, and aggregate statistics. It always reflects the best
// completeness level achieved, even after partial failures.
type DatasetSnapshot struct {
	GeoID          string              `json:"geo_id"`
	Metadata       GEODataset          `json:"metadata"`
	Completeness   CompletenessLevel   `json:"-"`
	Level          string              `json:"completeness_level"`
	Publications   []PublicationRecord `json:"publications"`
	FulltextStatus string              `json:"fulltext_status"`
	FulltextCount  int                 `json:"fulltext_count"`
	Statistics     DatasetStatistics   `json:"statistics"`
}
