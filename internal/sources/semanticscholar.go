// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"strings"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// semanticAPIBase is the Semantic Scholar graph endpoint. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper"

const semanticCitationFields = "title,abstract,authors,externalIds,year,citationCount,venue"

// SemanticScholarClient lists citing papers. Heavily rate limited without
// an API key; the limiter registry holds it to 1 req/s.
type SemanticScholarClient struct {
	base
	apiKey string
}

type semanticCitations struct {
	Data []struct {
		CitingPaper semanticPaper `json:"citingPaper"`
	} `json:"data"`
}

type semanticPaper struct {
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	Year          int    `json:"year"`
	CitationCount int    `json:"citationCount"`
	Venue         string `json:"venue"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI    string `json:"DOI"`
		ArXiv  string `json:"ArXiv"`
		PubMed string `json:"PubMed"`
		PMCID  string `json:"PubMedCentral"`
	} `json:"externalIds"`
}

func (p *semanticPaper) toPublication() *types.Publication {
	pub := &types.Publication{
		PMID:          p.ExternalIDs.PubMed,
		DOI:           p.ExternalIDs.DOI,
		ArxivID:       p.ExternalIDs.ArXiv,
		Title:         p.Title,
		Abstract:      p.Abstract,
		Journal:       p.Venue,
		Year:          p.Year,
		CitationCount: p.CitationCount,
	}
	if p.ExternalIDs.PMCID != "" {
		pub.PMCID = "PMC" + strings.TrimPrefix(p.ExternalIDs.PMCID, "PMC")
	}
	for _, a := range p.Authors {
		pub.Authors = append(pub.Authors, a.Name)
	}
	return pub
}

// FetchCitations lists papers citing the publication. The id is a PMID or
// DOI; Semantic Scholar accepts both with a prefix.
func (c *SemanticScholarClient) FetchCitations(ctx context.Context, id string) ([]*types.Publication, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}

	paperID := id
	if types.ValidPMID(id) {
		paperID = "PMID:" + id
	} else if types.ValidDOI(id) {
		paperID = "DOI:" + id
	}

	reqURL := semanticAPIBase + "/" + paperID + "/citations?fields=" + semanticCitationFields + "&limit=100"
	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"X-Api-Key": {c.apiKey}}
	}

	var sc semanticCitations
	if err := c.getJSON(ctx, reqURL, header, &sc); err != nil {
		return nil, err
	}

	pubs := make([]*types.Publication, 0, len(sc.Data))
	for i := range sc.Data {
		p := sc.Data[i].CitingPaper.toPublication()
		if p.HasIdentifier() || p.Title != "" {
			pubs = append(pubs, p)
		}
	}
	c.log.OK("fetched citations", logx.F("id", id), logx.F("count", len(pubs)))
	return pubs, nil
}
