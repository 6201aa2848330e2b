// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// biorxivAPIBase is the bioRxiv details endpoint. Declared as a var so
// tests can substitute an httptest server.
var biorxivAPIBase = "https://api.biorxiv.org/details/biorxiv/"

// biorxivContentBase hosts the preprint PDFs themselves.
var biorxivContentBase = "https://www.biorxiv.org/content/"

// BiorxivClient resolves preprint DOIs (10.1101/...) to direct PDF URLs.
type BiorxivClient struct {
	base
}

type biorxivResponse struct {
	Collection []struct {
		DOI     string `json:"doi"`
		Version string `json:"version"`
	} `json:"collection"`
	Messages []struct {
		Status string `json:"status"`
	} `json:"messages"`
}

// FetchPDFURL looks the DOI up in the bioRxiv details API and returns the
// versioned full.pdf URL. An unknown DOI is a clean not-found, never a
// retry loop.
func (c *BiorxivClient) FetchPDFURL(ctx context.Context, pub *types.Publication) (*types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" || !strings.HasPrefix(pub.DOI, "10.1101/") {
		return nil, nil
	}

	var br biorxivResponse
	if err := c.getJSON(ctx, biorxivAPIBase+pub.DOI, nil, &br); err != nil {
		return nil, err
	}
	if len(br.Collection) == 0 {
		c.log.Skip("doi not on biorxiv", logx.F("doi", pub.DOI))
		return nil, fmt.Errorf("biorxiv: DOI %s: %w", pub.DOI, ErrNotFound)
	}

	latest := br.Collection[len(br.Collection)-1]
	version := latest.Version
	if version == "" {
		version = "1"
	}
	return &types.URLCandidate{
		URL:        fmt.Sprintf("%s%sv%s.full.pdf", biorxivContentBase, pub.DOI, version),
		Source:     c.name,
		Priority:   BasePriority(c.name),
		Confidence: 0.95,
	}, nil
}

// FetchURLs adapts the direct endpoint to the URL-fetcher capability.
func (c *BiorxivClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	cand, err := c.FetchPDFURL(ctx, pub)
	if err != nil || cand == nil {
		return nil, err
	}
	return []types.URLCandidate{*cand}, nil
}
