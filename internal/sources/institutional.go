// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// InstitutionalClient wraps the DOI resolver in an EZproxy-style prefix.
// Off by default; candidates it emits always require authentication, so
// the waterfall skips them unless institutional mode is on.
type InstitutionalClient struct {
	base
	proxy string
}

// FetchURLs returns the proxy-wrapped DOI resolver URL.
func (c *InstitutionalClient) FetchURLs(ctx context.Context, pub *types.Publication) ([]types.URLCandidate, error) {
	if err := c.checkEnabled(); err != nil {
		return nil, err
	}
	if pub.DOI == "" {
		return nil, nil
	}

	target := "https://doi.org/" + pub.DOI
	proxy := strings.TrimSuffix(c.proxy, "/")
	return []types.URLCandidate{{
		URL:          proxy + "/login?url=" + url.QueryEscape(target),
		Source:       c.name,
		Priority:     BasePriority(c.name),
		RequiresAuth: true,
	}}, nil
}
