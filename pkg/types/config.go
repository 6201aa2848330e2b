// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout (default 20s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "geo-fulltext/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourcesConfig enables individual bibliographic sources and carries their
// credentials. PMC, Unpaywall and OpenAlex are on by default; institutional
// proxying and last-resort sources are off unless the operator opts in.
type SourcesConfig struct {
	EnablePMC           bool `json:"enable_pmc" yaml:"enable_pmc"`
	EnableUnpaywall     bool `json:"enable_unpaywall" yaml:"enable_unpaywall"`
	EnableOpenAlex      bool `json:"enable_openalex" yaml:"enable_openalex"`
	EnableSemantic      bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar"`
	EnableEuropePMC     bool `json:"enable_europepmc" yaml:"enable_europepmc"`
	EnableOpenCitations bool `json:"enable_opencitations" yaml:"enable_opencitations"`
	EnableCrossref      bool `json:"enable_crossref" yaml:"enable_crossref"`
	EnableArxiv         bool `json:"enable_arxiv" yaml:"enable_arxiv"`
	EnableBiorxiv       bool `json:"enable_biorxiv" yaml:"enable_biorxiv"`
	EnableCORE          bool `json:"enable_core" yaml:"enable_core"`
	EnableInstitutional bool `json:"enable_institutional" yaml:"enable_institutional"`
	EnableSciHub        bool `json:"enable_scihub" yaml:"enable_scihub"`

	// NCBIContactEmail identifies the caller to E-utilities; an API key
	// raises the rate limit from 3 to 10 req/s.
	NCBIContactEmail string `json:"ncbi_contact_email,omitempty" yaml:"ncbi_contact_email,omitempty"`
	NCBIAPIKey       string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// UnpaywallEmail is required by the Unpaywall API.
	UnpaywallEmail string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty"`

	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`
	COREAPIKey            string `json:"core_api_key,omitempty" yaml:"core_api_key,omitempty"`

	// InstitutionalProxy is the EZproxy-style prefix wrapped around DOIs
	// when institutional access is enabled.
	InstitutionalProxy string `json:"institutional_proxy,omitempty" yaml:"institutional_proxy,omitempty"`
}

// DownloadConfig holds settings for PDF acquisition.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxConcurrent bounds simultaneous publication downloads (default 10).
	MaxConcurrent int `json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`

	// MaxFileSize caps a single PDF (default 50 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// MinFileSize rejects truncated responses (default 1 KB).
	MinFileSize int64 `json:"min_file_size" yaml:"min_file_size"`
}

// DiscoveryConfig holds settings for citation discovery.
type DiscoveryConfig struct {
	HTTPConfig `yaml:",inline"`

	// BatchTimeout bounds the parallel citing-source fan-out (default 10s).
	BatchTimeout time.Duration `json:"discovery_timeout" yaml:"discovery_timeout"`

	// IncludeRejected surfaces quality-rejected citing papers in snapshots.
	IncludeRejected bool `json:"include_rejected" yaml:"include_rejected"`

	// CacheTTL is the discovery-result TTL in the hot tier (default 30d).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// FulltextConfig holds settings for URL collection.
type FulltextConfig struct {
	// BatchTimeout bounds the parallel per-source fan-out (default 10s).
	BatchTimeout time.Duration `json:"p2_batch_timeout" yaml:"p2_batch_timeout"`
}

// ParseConfig holds settings for text enrichment.
type ParseConfig struct {
	// Workers bounds concurrent PDF parses (default: number of cores).
	Workers int `json:"workers" yaml:"workers"`
}

// PipelineConfig holds coordinator retry and timeout policy.
type PipelineConfig struct {
	// MaxRetries before a stage is frozen as poisoned (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Backoff is the retry deferral ladder indexed by retry count
	// (default 5m, 30m, 2h).
	Backoff []time.Duration `json:"backoff" yaml:"backoff"`

	// StageTimeout bounds a single stage (default 5m).
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout"`

	// DatasetTimeout bounds one dataset end to end (default 30m).
	DatasetTimeout time.Duration `json:"dataset_timeout" yaml:"dataset_timeout"`

	// MaxPapersPerDataset caps publications carried through the URL,
	// download, and parse stages.
	MaxPapersPerDataset int `json:"max_papers_per_dataset" yaml:"max_papers_per_dataset"`

	// DatasetConcurrency bounds datasets enriched in parallel (default 4).
	DatasetConcurrency int `json:"dataset_concurrency" yaml:"dataset_concurrency"`
}

// CacheConfig holds hot/cold tier settings.
type CacheConfig struct {
	// RedisURL connects the hot tier; empty disables it (warm tier only).
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`

	// TTLs per key namespace.
	MetadataTTL time.Duration `json:"metadata_ttl" yaml:"metadata_ttl"`
	ParsedTTL   time.Duration `json:"parsed_ttl" yaml:"parsed_ttl"`
	SearchTTL   time.Duration `json:"search_ttl" yaml:"search_ttl"`

	// SoftMaxAge drives scheduled cleanup of the cold SOFT cache (default 90d).
	SoftMaxAge time.Duration `json:"soft_max_age" yaml:"soft_max_age"`
}

// Config is the immutable process-wide configuration, captured at startup.
type Config struct {
	HTTPConfig `yaml:",inline"`

	// StorageRoot is the base directory for the warm tier
	// (geo/, pdfs/, parsed/, cache/soft/).
	StorageRoot string `json:"storage_root" yaml:"storage_root"`

	// DesiredLevelDefault is the completeness target when a request does
	// not specify one.
	DesiredLevelDefault string `json:"desired_completeness_default" yaml:"desired_completeness_default"`

	Sources   SourcesConfig   `json:"sources" yaml:"sources"`
	Download  DownloadConfig  `json:"download" yaml:"download"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Fulltext  FulltextConfig  `json:"fulltext" yaml:"fulltext"`
	Parse     ParseConfig     `json:"parse" yaml:"parse"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HTTPConfig: HTTPConfig{
			Timeout:   20 * time.Second,
			UserAgent: "geo-fulltext/0.1",
		},
		StorageRoot:         "data",
		DesiredLevelDefault: LevelFullyEnriched.String(),
		Sources: SourcesConfig{
			EnablePMC:           true,
			EnableUnpaywall:     true,
			EnableOpenAlex:      true,
			EnableSemantic:      true,
			EnableEuropePMC:     true,
			EnableOpenCitations: true,
			EnableCrossref:      true,
			EnableArxiv:         true,
			EnableBiorxiv:       true,
		},
		Download: DownloadConfig{
			HTTPConfig:    HTTPConfig{Timeout: 20 * time.Second, UserAgent: "geo-fulltext/0.1"},
			MaxConcurrent: 10,
			MaxFileSize:   50 << 20,
			MinFileSize:   1 << 10,
		},
		Discovery: DiscoveryConfig{
			HTTPConfig:   HTTPConfig{Timeout: 20 * time.Second, UserAgent: "geo-fulltext/0.1"},
			BatchTimeout: 10 * time.Second,
			CacheTTL:     30 * 24 * time.Hour,
		},
		Fulltext: FulltextConfig{BatchTimeout: 10 * time.Second},
		Pipeline: PipelineConfig{
			MaxRetries:          3,
			Backoff:             []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour},
			StageTimeout:        5 * time.Minute,
			DatasetTimeout:      30 * time.Minute,
			MaxPapersPerDataset: 10,
			DatasetConcurrency:  4,
		},
		Cache: CacheConfig{
			MetadataTTL: 30 * 24 * time.Hour,
			ParsedTTL:   7 * 24 * time.Hour,
			SearchTTL:   24 * time.Hour,
			SoftMaxAge:  90 * 24 * time.Hour,
		},
	}
}
