// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Last-resort mirrors. Whether these are ever enabled is an operator
// policy decision; the client ships disabled.
var (
	sciHubMirrors = []string{"https://sci-hub.se", "https://sci-hub.st"}
	libgenMirrors = []string{"https://libgen.rs/scimag/?q="}
)

// SciHubClient derives last-resort landing URLs for a DOI. It performs no
// lookups of its own; the download stage's landing-page extractor does the
// rest when the operator has enabled it.
type SciHubClient struct {
	base
}

// FetchURLs returns mirror landing pages for the DOI.
func (c *SciHubClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" {
		return nil, nil
	}

	var candidates []types.URLCandidate
	prio := BasePriority(c.name)
	for i, mirror := range sciHubMirrors {
		candidates = append(candidates, types.URLCandidate{
			URL:      mirror + "/" + pub.DOI,
			Source:   c.name,
			Type:     types.URLLandingPage,
			Priority: prio + i,
		})
	}
	prio = BasePriority("libgen")
	for i, mirror := range libgenMirrors {
		candidates = append(candidates, types.URLCandidate{
			URL:      mirror + pub.DOI,
			Source:   "libgen",
			Type:     types.URLLandingPage,
			Priority: prio + i,
		})
	}
	return candidates, nil
}
