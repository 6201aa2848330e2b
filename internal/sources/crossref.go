// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"strings"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

// CrossrefClient returns link and license metadata for a DOI. Crossref
// never hosts content itself; its value is the publisher link set and the
// paywall indicator derived from the license list.
type CrossrefClient struct {
	base
}

type crossrefResponse struct {
	Message struct {
		Link []struct {
			URL         string `json:"URL"`
			ContentType string `json:"content-type"`
		} `json:"link"`
		License []struct {
			URL string `json:"URL"`
		} `json:"license"`
		Publisher string `json:"publisher"`
	} `json:"message"`
}

// openLicenseMarkers identify licenses that permit redistribution; their
// absence flags the link set as likely paywalled.
var openLicenseMarkers = []string{"creativecommons.org", "opensource.org"}

// FetchURLs returns publisher links for a DOI. PDF links rank ahead of
// generic ones; every candidate carries the paywall indicator.
func (c *CrossrefClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" {
		return nil, nil
	}

	var cr crossrefResponse
	if err := c.getJSON(ctx, crossrefAPIBase+pub.DOI, nil, &cr); err != nil {
		return nil, err
	}

	openLicense := false
	for _, lic := range cr.Message.License {
		for _, marker := range openLicenseMarkers {
			if strings.Contains(lic.URL, marker) {
				openLicense = true
			}
		}
	}
	paywalled := "true"
	if openLicense {
		paywalled = "false"
	}

	prio := BasePriority(c.name)
	var candidates []types.URLCandidate
	for _, link := range cr.Message.Link {
		if link.URL == "" {
			continue
		}
		offset := 1
		if strings.Contains(link.ContentType, "pdf") {
			offset = 0
		}
		candidates = append(candidates, types.URLCandidate{
			URL:      link.URL,
			Source:   c.name,
			Priority: prio + offset,
			Metadata: map[string]string{
				"paywalled": paywalled,
				"publisher": cr.Message.Publisher,
			},
		})
	}
	c.log.OK("collected publisher links", logx.F("doi", pub.DOI),
		logx.F("count", len(candidates)), logx.F("paywalled", paywalled))
	return candidates, nil
}
