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

// eutilsBase is the NCBI E-utilities endpoint. Declared as a var so tests
// can substitute an httptest server.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// citedInLimit caps how many citing PMIDs we hydrate per publication.
const citedInLimit = 100

// PubMedClient talks to the NCBI E-utilities. It provides publication
// metadata, cited-in discovery via ELink, and PMC-derived URL candidates.
type PubMedClient struct {
	base
	apiKey string
	email  string
}

func (c *PubMedClient) params(extra url.Values) url.Values {
	v := url.Values{"tool": {"geo-fulltext"}}
	if c.email != "" {
		v.Set("email", c.email)
	}
	if c.apiKey != "" {
		v.Set("api_key", c.apiKey)
	}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

// EFetch XML structures (pubmed db).
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Texts []struct {
					Label string `xml:"Label,attr"`
					Text  string `xml:",chardata"`
				} `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year string `xml:"Year"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			Authors []struct {
				LastName string `xml:"LastName"`
				ForeName string `xml:"ForeName"`
			} `xml:"AuthorList>Author"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	Data struct {
		IDs []struct {
			Type  string `xml:"IdType,attr"`
			Value string `xml:",chardata"`
		} `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

func (a *pubmedArticle) toPublication() *types.Publication {
	art := a.Citation.Article
	pub := &types.Publication{
		PMID:    strings.TrimSpace(a.Citation.PMID),
		Title:   strings.TrimSpace(art.Title),
		Journal: strings.TrimSpace(art.Journal.Title),
	}
	var abs []string
	for _, t := range art.Abstract.Texts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		abs = append(abs, text)
	}
	pub.Abstract = strings.Join(abs, "\n")
	for _, au := range art.Authors {
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name != "" {
			pub.Authors = append(pub.Authors, name)
		}
	}
	if y, err := strconv.Atoi(art.Journal.PubDate.Year); err == nil {
		pub.Year = y
	}
	// EFetch carries the id conversion: pmc and doi arrive alongside.
	for _, id := range a.Data.IDs {
		switch id.Type {
		case "pmc":
			pub.PMCID = strings.TrimSpace(id.Value)
		case "doi":
			pub.DOI = strings.TrimSpace(id.Value)
		}
	}
	return pub
}

// FetchPublication returns full metadata for one PMID.
func (c *PubMedClient) FetchPublication(ctx context.Context, pmid string) (*types.Publication, error) {
	pubs, err := c.fetchArticles(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(pubs) == 0 {
		return nil, fmt.Errorf("pubmed: PMID %s: %w", pmid, ErrNotFound)
	}
	return pubs[0], nil
}

func (c *PubMedClient) fetchArticles(ctx context.Context, pmids []string) ([]*types.Publication, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	v := c.params(url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	})
	var set pubmedArticleSet
	if err := c.getXML(ctx, eutilsBase+"/efetch.fcgi?"+v.Encode(), nil, &set); err != nil {
		return nil, err
	}
	pubs := make([]*types.Publication, 0, len(set.Articles))
	for i := range set.Articles {
		pubs = append(pubs, set.Articles[i].toPublication())
	}
	return pubs, nil
}

// ESummary envelope (pubmed db), used as the fallback when EFetch lacks a
// usable title. Entries are keyed by PMID so the payload stays dynamic.
type rawSummary struct {
	Result map[string]any `json:"result"`
}

// FetchSummary returns the ESummary title and journal for a PMID.
func (c *PubMedClient) FetchSummary(ctx context.Context, pmid string) (title, journal string, err error) {
	v := c.params(url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"json"},
	})
	var raw rawSummary
	if err := c.getJSON(ctx, eutilsBase+"/esummary.fcgi?"+v.Encode(), nil, &raw); err != nil {
		return "", "", err
	}
	entry, ok := raw.Result[pmid].(map[string]any)
	if !ok {
		return "", "", fmt.Errorf("pubmed: summary for PMID %s: %w", pmid, ErrNotFound)
	}
	title, _ = entry["title"].(string)
	journal, _ = entry["source"].(string)
	return title, journal, nil
}

// ELink structure for pubmed_pubmed_citedin.
type elinkResult struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string   `json:"linkname"`
			Links    []string `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// FetchCitations returns publications citing the given PMID, hydrated with
// EFetch metadata.
func (c *PubMedClient) FetchCitations(ctx context.Context, pmid string) ([]*types.Publication, error) {
	v := c.params(url.Values{
		"dbfrom":   {"pubmed"},
		"db":       {"pubmed"},
		"id":       {pmid},
		"linkname": {"pubmed_pubmed_citedin"},
		"retmode":  {"json"},
	})
	var el elinkResult
	if err := c.getJSON(ctx, eutilsBase+"/elink.fcgi?"+v.Encode(), nil, &el); err != nil {
		return nil, err
	}

	var citing []string
	for _, ls := range el.LinkSets {
		for _, db := range ls.LinkSetDBs {
			if db.LinkName == "pubmed_pubmed_citedin" {
				citing = append(citing, db.Links...)
			}
		}
	}
	if len(citing) == 0 {
		return nil, nil
	}
	if len(citing) > citedInLimit {
		citing = citing[:citedInLimit]
	}

	pubs, err := c.fetchArticles(ctx, citing)
	if err != nil {
		return nil, err
	}
	c.log.OK("fetched citations", logx.F("pmid", pmid), logx.F("count", len(pubs)))
	return pubs, nil
}

// FetchURLs derives PMC-hosted candidates when the publication has a PMCID.
// PubMed itself hosts no full text.
func (c *PubMedClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.PMCID == "" {
		return nil, nil
	}
	prio := BasePriority(c.name)
	return []types.URLCandidate{
		{
			URL:      fmt.Sprintf("https://pmc.ncbi.nlm.nih.gov/articles/%s/", pub.PMCID),
			Source:   c.name,
			Priority: prio,
		},
		{
			URL:      fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pmc/articles/%s/pdf/", pub.PMCID),
			Source:   c.name,
			Priority: prio,
		},
	}, nil
}
