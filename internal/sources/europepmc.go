// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// europePMCAPIBase is the Europe PMC REST endpoint. Declared as a var so
// tests can substitute an httptest server.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// EuropePMCClient lists citing papers for a PMID.
type EuropePMCClient struct {
	base
}

type europePMCCitations struct {
	CitationList struct {
		Citations []struct {
			ID            string `json:"id"`
			Source        string `json:"source"`
			Title         string `json:"title"`
			AuthorString  string `json:"authorString"`
			JournalAbbrev string `json:"journalAbbreviation"`
			PubYear       int    `json:"pubYear"`
			CitedByCount  int    `json:"citedByCount"`
		} `json:"citation"`
	} `json:"citationList"`
}

// FetchCitations lists publications citing the given PMID.
func (c *EuropePMCClient) FetchCitations(ctx context.Context, pmid string) ([]*types.Publication, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if !types.ValidPMID(pmid) {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/MED/%s/citations?format=json&pageSize=100", europePMCAPIBase, pmid)
	var ec europePMCCitations
	if err := c.getJSON(ctx, reqURL, nil, &ec); err != nil {
		return nil, err
	}

	pubs := make([]*types.Publication, 0, len(ec.CitationList.Citations))
	for _, cit := range ec.CitationList.Citations {
		pub := &types.Publication{
			Title:         cit.Title,
			Journal:       cit.JournalAbbrev,
			Year:          cit.PubYear,
			CitationCount: cit.CitedByCount,
		}
		if cit.Source == "MED" {
			pub.PMID = cit.ID
		}
		if cit.AuthorString != "" {
			pub.Authors = []string{cit.AuthorString}
		}
		if pub.HasIdentifier() || pub.Title != "" {
			pubs = append(pubs, pub)
		}
	}
	c.log.OK("fetched citations", logx.F("pmid", pmid), logx.F("count", len(pubs)))
	return pubs, nil
}
