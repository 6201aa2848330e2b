// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// unpaywallAPIBase is the Unpaywall endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

// UnpaywallClient returns the best open-access location for a DOI. The
// API requires a contact email; the client is disabled without one.
type UnpaywallClient struct {
	base
	email string
}

type unpaywallResponse struct {
	IsOA           bool                `json:"is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
	URL       string `json:"url"`
	Version   string `json:"version"`
	License   string `json:"license"`
}

// FetchURLs queries Unpaywall by DOI and returns the best OA location
// first, then any further OA locations with a PDF URL.
func (c *UnpaywallClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" {
		return nil, nil
	}

	reqURL := unpaywallAPIBase + url.PathEscape(pub.DOI) + "?email=" + url.QueryEscape(c.email)
	var ur unpaywallResponse
	if err := c.getJSON(ctx, reqURL, nil, &ur); err != nil {
		return nil, err
	}
	if !ur.IsOA {
		c.log.Skip("no open-access location", logx.F("doi", pub.DOI))
		return nil, nil
	}

	prio := BasePriority(c.name)
	var candidates []types.URLCandidate
	add := func(loc unpaywallLocation, offset int) {
		u := loc.URLForPDF
		if u == "" {
			u = loc.URL
		}
		if u == "" {
			return
		}
		candidates = append(candidates, types.URLCandidate{
			URL:        u,
			Source:     c.name,
			Priority:   prio + offset,
			Confidence: 0.9,
			Metadata:   map[string]string{"license": loc.License, "version": loc.Version},
		})
	}
	if ur.BestOALocation != nil {
		add(*ur.BestOALocation, 0)
	}
	for i, loc := range ur.OALocations {
		if ur.BestOALocation != nil && loc == *ur.BestOALocation {
			continue
		}
		if loc.URLForPDF == "" {
			continue
		}
		add(loc, i+1)
	}
	c.log.OK("collected OA locations", logx.F("doi", pub.DOI), logx.F("count", len(candidates)))
	return candidates, nil
}
