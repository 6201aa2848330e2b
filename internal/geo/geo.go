// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geo fetches series metadata for GEO accessions: the E-utilities
// gds summary first, the SOFT family file as fallback for fields the
// summary lacks.
package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// geoEutilsBase is the NCBI E-utilities endpoint. Declared as a var so
// tests can substitute an httptest server.
var geoEutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Client fetches GEO series metadata.
type Client struct {
	http   *http.Client
	log    logx.Logger
	ua     string
	apiKey string
	email  string
}

// NewClient builds a metadata client on the shared transport.
func NewClient(client *http.Client, cfg types.Config, log logx.Logger) *Client {
	return &Client{
		http:   client,
		log:    log.WithSource("geo"),
		ua:     cfg.UserAgent,
		apiKey: cfg.Sources.NCBIAPIKey,
		email:  cfg.Sources.NCBIContactEmail,
	}
}

func (c *Client) params(extra url.Values) url.Values {
	v := url.Values{"tool": {"geo-fulltext"}}
	if c.email != "" {
		v.Set("email", c.email)
	}
	if c.apiKey != "" {
		v.Set("api_key", c.apiKey)
	}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("geo: creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	resp, err := httpx.DoWithRetry(ctx, c.http, req)
	if err != nil {
		return fmt.Errorf("geo: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo: HTTP %d from %s", resp.StatusCode, rawURL)
	}
	return decodeJSON(resp.Body, out)
}

type esearchResult struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// FetchDataset resolves a GEO accession to its series metadata via
// ESearch + ESummary on the gds database.
func (c *Client) FetchDataset(ctx context.Context, geoID string) (*types.GEODataset, error) {
	if !types.ValidAccession(geoID) {
		return nil, fmt.Errorf("geo: invalid accession %q", geoID)
	}

	v := c.params(url.Values{
		"db":      {"gds"},
		"term":    {geoID + "[ACCN]"},
		"retmode": {"json"},
	})
	var es esearchResult
	if err := c.getJSON(ctx, geoEutilsBase+"/esearch.fcgi?"+v.Encode(), &es); err != nil {
		return nil, err
	}
	if len(es.Result.IDList) == 0 {
		return nil, fmt.Errorf("geo: accession %s not found", geoID)
	}

	v = c.params(url.Values{
		"db":      {"gds"},
		"id":      {es.Result.IDList[0]},
		"retmode": {"json"},
	})
	var summary struct {
		Result map[string]any `json:"result"`
	}
	if err := c.getJSON(ctx, geoEutilsBase+"/esummary.fcgi?"+v.Encode(), &summary); err != nil {
		return nil, err
	}

	entry, ok := summary.Result[es.Result.IDList[0]].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("geo: summary for %s missing", geoID)
	}

	ds := &types.GEODataset{GeoID: geoID}
	ds.Title, _ = entry["title"].(string)
	ds.Summary, _ = entry["summary"].(string)
	ds.Organism, _ = entry["taxon"].(string)
	ds.Platform, _ = entry["gpl"].(string)
	if ds.Platform != "" && !strings.HasPrefix(ds.Platform, "GPL") {
		ds.Platform = "GPL" + ds.Platform
	}
	if n, ok := entry["n_samples"].(float64); ok {
		ds.SampleCount = int(n)
	}
	if pdat, ok := entry["pdat"].(string); ok {
		if t, err := time.Parse("2006/01/02", pdat); err == nil {
			ds.PublishDate = t
		}
	}
	if ids, ok := entry["pubmedids"].([]any); ok {
		for _, id := range ids {
			switch pid := id.(type) {
			case string:
				ds.PubmedIDs = append(ds.PubmedIDs, pid)
			case float64:
				ds.PubmedIDs = append(ds.PubmedIDs, fmt.Sprintf("%.0f", pid))
			}
		}
	}

	c.log.OK("fetched series metadata", logx.F("geo_id", geoID),
		logx.F("pmids", len(ds.PubmedIDs)), logx.F("samples", ds.SampleCount))
	return ds, nil
}
