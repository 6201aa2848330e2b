// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"strings"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// openCitationsAPIBase is the COCI index endpoint. Declared as a var so
// tests can substitute an httptest server.
var openCitationsAPIBase = "https://opencitations.net/index/coci/api/v1"

// OpenCitationsClient lists citing DOIs from the COCI index. Records only
// carry identifiers; discovery merges them with richer sources.
type OpenCitationsClient struct {
	base
}

type cociCitation struct {
	Citing string `json:"citing"`
}

// FetchCitations lists DOIs citing the given DOI.
func (c *OpenCitationsClient) FetchCitations(ctx context.Context, doi string) ([]*types.Publication, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if !types.ValidDOI(doi) {
		return nil, nil
	}

	var citations []cociCitation
	if err := c.getJSON(ctx, openCitationsAPIBase+"/citations/"+doi, nil, &citations); err != nil {
		return nil, err
	}

	pubs := make([]*types.Publication, 0, len(citations))
	for _, cit := range citations {
		citing := strings.TrimSpace(cit.Citing)
		// COCI values may be prefixed "coci => <doi>".
		if i := strings.LastIndex(citing, "=> "); i >= 0 {
			citing = strings.TrimSpace(citing[i+3:])
		}
		if !types.ValidDOI(citing) {
			continue
		}
		pubs = append(pubs, &types.Publication{DOI: citing})
	}
	c.log.OK("fetched citing dois", logx.F("doi", doi), logx.F("count", len(pubs)))
	return pubs, nil
}
