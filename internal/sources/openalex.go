// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

// citingPageSize bounds one citing-works page.
const citingPageSize = 50

// OpenAlexClient resolves works by DOI, lists citing works, and returns
// open-access PDF locations. Lookups are batch-capable through the
// pipe-joined doi filter.
type OpenAlexClient struct {
	base
	mailto string
}

type openAlexWork struct {
	ID              string            `json:"id"`
	DOI             string            `json:"doi"`
	Title           string            `json:"title"`
	PublicationYear int               `json:"publication_year"`
	CitedByCount    int               `json:"cited_by_count"`
	CitedByAPIURL   string            `json:"cited_by_api_url"`
	IDs             map[string]string `json:"ids"`
	BestOALocation  *openAlexLocation `json:"best_oa_location"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation *struct {
		Source *struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
	License    string `json:"license"`
}

type openAlexList struct {
	Results []openAlexWork `json:"results"`
}

func (w *openAlexWork) toPublication() *types.Publication {
	pub := &types.Publication{
		DOI:           strings.TrimPrefix(w.DOI, "https://doi.org/"),
		Title:         w.Title,
		Year:          w.PublicationYear,
		CitationCount: w.CitedByCount,
	}
	if pmid, ok := w.IDs["pmid"]; ok {
		pub.PMID = strings.TrimPrefix(pmid, "https://pubmed.ncbi.nlm.nih.gov/")
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			pub.Authors = append(pub.Authors, a.Author.DisplayName)
		}
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		pub.Journal = w.PrimaryLocation.Source.DisplayName
	}
	return pub
}

func (c *OpenAlexClient) withMailto(u string) string {
	if c.mailto == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "mailto=" + url.QueryEscape(c.mailto)
}

// fetchWork resolves a single work by DOI.
func (c *OpenAlexClient) fetchWork(ctx context.Context, doi string) (*openAlexWork, error) {
	reqURL := c.withMailto(openAlexAPIBase + "/https://doi.org/" + doi)
	var w openAlexWork
	if err := c.getJSON(ctx, reqURL, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// FetchWorksBatch resolves up to 50 DOIs in one request via the
// pipe-joined filter.
func (c *OpenAlexClient) FetchWorksBatch(ctx context.Context, dois []string) ([]*types.Publication, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if len(dois) == 0 {
		return nil, nil
	}
	if len(dois) > citingPageSize {
		dois = dois[:citingPageSize]
	}
	filter := "doi:" + strings.Join(dois, "|")
	reqURL := c.withMailto(openAlexAPIBase + "?filter=" + url.QueryEscape(filter) +
		"&per-page=" + strconv.Itoa(citingPageSize))
	var list openAlexList
	if err := c.getJSON(ctx, reqURL, nil, &list); err != nil {
		return nil, err
	}
	pubs := make([]*types.Publication, 0, len(list.Results))
	for i := range list.Results {
		pubs = append(pubs, list.Results[i].toPublication())
	}
	return pubs, nil
}

// FetchCitations lists works citing the publication identified by DOI.
func (c *OpenAlexClient) FetchCitations(ctx context.Context, doi string) ([]*types.Publication, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	work, err := c.fetchWork(ctx, doi)
	if err != nil {
		return nil, err
	}
	if work.ID == "" {
		return nil, fmt.Errorf("openalex: DOI %s: %w", doi, ErrNotFound)
	}

	// The work record carries a ready-made cited_by URL; fall back to the
	// cites filter when absent.
	citedURL := work.CitedByAPIURL
	if citedURL == "" {
		id := strings.TrimPrefix(work.ID, "https://openalex.org/")
		citedURL = openAlexAPIBase + "?filter=cites:" + id
	}
	citedURL = c.withMailto(citedURL + "&per-page=" + strconv.Itoa(citingPageSize))

	var list openAlexList
	if err := c.getJSON(ctx, citedURL, nil, &list); err != nil {
		return nil, err
	}
	pubs := make([]*types.Publication, 0, len(list.Results))
	for i := range list.Results {
		pubs = append(pubs, list.Results[i].toPublication())
	}
	c.log.OK("fetched citing works", logx.F("doi", doi), logx.F("count", len(pubs)))
	return pubs, nil
}

// FetchURLs returns the open-access location for a DOI, PDF URL first.
func (c *OpenAlexClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" {
		return nil, nil
	}
	work, err := c.fetchWork(ctx, pub.DOI)
	if err != nil {
		return nil, err
	}
	if work.BestOALocation == nil {
		return nil, nil
	}

	prio := BasePriority(c.name)
	var candidates []types.URLCandidate
	if work.BestOALocation.PDFURL != "" {
		candidates = append(candidates, types.URLCandidate{
			URL:        work.BestOALocation.PDFURL,
			Source:     c.name,
			Priority:   prio,
			Confidence: 0.85,
			Metadata:   map[string]string{"license": work.BestOALocation.License},
		})
	}
	if work.BestOALocation.LandingURL != "" {
		candidates = append(candidates, types.URLCandidate{
			URL:        work.BestOALocation.LandingURL,
			Source:     c.name,
			Priority:   prio + 1,
			Confidence: 0.5,
		})
	}
	return candidates, nil
}
