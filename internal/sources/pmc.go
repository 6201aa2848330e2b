// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// pmcPDFPatterns are the four direct-PDF URL shapes PMC serves, newest
// host first. All of them 403 when PMC blocks programmatic access, which
// is why the breaker gates the whole set.
var pmcPDFPatterns = []string{
	"https://pmc.ncbi.nlm.nih.gov/articles/%s/pdf/",
	"https://pmc.ncbi.nlm.nih.gov/articles/%s/pdf/main.pdf",
	"https://www.ncbi.nlm.nih.gov/pmc/articles/%s/pdf/",
	"https://europepmc.org/backend/ptpmcrender.fcgi?accid=%s&blobtype=pdf",
}

// PMCClient derives PubMed Central PDF candidates. URL derivation is
// offline; the breaker state reflects download outcomes reported by the
// acquisition stage.
type PMCClient struct {
	base
	breaker *gobreaker.CircuitBreaker
}

// Blocked reports whether the 403 breaker is currently open.
func (c *PMCClient) Blocked() bool {
	return c.breaker != nil && c.breaker.State() == gobreaker.StateOpen
}

// FetchURLs returns the PMC PDF patterns for a publication with a PMCID.
// While the breaker is open the client returns the denied kind so the
// stage records PMC as blocked instead of queueing doomed attempts.
func (c *PMCClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.PMCID == "" {
		return nil, nil
	}
	if c.Blocked() {
		return nil, fmt.Errorf("pmc: 403 breaker open: %w", ErrPermanentDenied)
	}

	prio := BasePriority(c.name)
	candidates := make([]types.URLCandidate, 0, len(pmcPDFPatterns))
	for i, pattern := range pmcPDFPatterns {
		candidates = append(candidates, types.URLCandidate{
			URL:      fmt.Sprintf(pattern, pub.PMCID),
			Source:   c.name,
			Priority: prio + i,
		})
	}
	return candidates, nil
}
