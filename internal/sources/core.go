// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// coreAPIBase is the CORE v3 search endpoint. Declared as a var so tests
// can substitute an httptest server.
var coreAPIBase = "https://api.core.ac.uk/v3/search/works"

// COREClient finds repository-hosted copies through the CORE aggregator.
// Requires an API key; disabled without one.
type COREClient struct {
	base
	apiKey string
}

type coreResponse struct {
	Results []struct {
		DownloadURL string `json:"downloadUrl"`
		Links       []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"links"`
	} `json:"results"`
}

// FetchURLs searches CORE by DOI and returns repository download links.
func (c *COREClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s?q=%s&limit=5", coreAPIBase,
		url.QueryEscape(fmt.Sprintf(`doi:"%s"`, pub.DOI)))
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

	var cr coreResponse
	if err := c.getJSON(ctx, reqURL, header, &cr); err != nil {
		return nil, err
	}

	prio := BasePriority(c.name)
	var candidates []types.URLCandidate
	for _, res := range cr.Results {
		if res.DownloadURL != "" {
			candidates = append(candidates, types.URLCandidate{
				URL:      res.DownloadURL,
				Source:   c.name,
				Priority: prio,
			})
		}
		for _, link := range res.Links {
			if link.Type == "download" && link.URL != res.DownloadURL {
				candidates = append(candidates, types.URLCandidate{
					URL:      link.URL,
					Source:   c.name,
					Priority: prio + 1,
				})
			}
		}
	}
	c.log.OK("collected repository links", logx.F("doi", pub.DOI), logx.F("count", len(candidates)))
	return candidates, nil
}
