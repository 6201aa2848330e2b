// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// arxivPDFBase is the arXiv PDF endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivPDFBase = "https://arxiv.org/pdf/"

// ArxivClient derives the deterministic PDF endpoint for arXiv ids. No
// network round-trip is needed.
type ArxivClient struct {
	base
}

// FetchPDFURL returns the arXiv PDF candidate when the publication has an
// arXiv id.
func (c *ArxivClient) FetchPDFURL(ctx context.Context, pub *types.Publication) (*types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.ArxivID == "" {
		return nil, nil
	}
	return &types.URLCandidate{
		URL:        arxivPDFBase + pub.ArxivID,
		Source:     c.name,
		Priority:   BasePriority(c.name),
		Confidence: 0.95,
	}, nil
}

// FetchURLs adapts the direct endpoint to the URL-fetcher capability.
func (c *ArxivClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	cand, err := c.FetchPDFURL(ctx, pub)
	if err != nil || cand == nil {
		return nil, err
	}
	return []types.URLCandidate{*cand}, nil
}
