// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify assigns a type and priority adjustment to candidate
// URLs without making any network request. Classification is deterministic
// and depends only on the URL string.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Priority boosts per URL type. Lower total priority is tried first, so
// direct PDFs move up the waterfall and DOI resolvers sink.
const (
	BoostDirectPDF    = -2
	BoostHTMLFulltext = 0
	BoostUnknown      = +1
	BoostDOIResolver  = +3
)

// directPDFPatterns match URLs that should serve PDF bytes directly.
var directPDFPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.pdf($|\?)`),
	regexp.MustCompile(`arxiv\.org/pdf/`),
	regexp.MustCompile(`/pmc/articles/pmc\d+/pdf/?`),
	regexp.MustCompile(`pmc\.ncbi\.nlm\.nih\.gov/articles/pmc\d+/pdf/?`),
	regexp.MustCompile(`[?&]pdf=render`),
	regexp.MustCompile(`biorxiv\.org/content/.+\.full\.pdf`),
}

// doiResolverHosts are landing redirectors, not content hosts.
var doiResolverHosts = map[string]bool{
	"doi.org":                 true,
	"dx.doi.org":              true,
	"linkinghub.elsevier.com": true,
}

// htmlFulltextPatterns match pages that render the full text inline.
var htmlFulltextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ncbi\.nlm\.nih\.gov/pmc/articles/pmc\d+/?$`),
	regexp.MustCompile(`pmc\.ncbi\.nlm\.nih\.gov/articles/pmc\d+/?$`),
	regexp.MustCompile(`europepmc\.org/article/`),
}

// Classify returns the URL type and its priority boost.
func Classify(rawURL string) (types.URLType, int) {
	lower := strings.ToLower(rawURL)

	for _, p := range directPDFPatterns {
		if p.MatchString(lower) {
			return types.URLDirectPDF, BoostDirectPDF
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if doiResolverHosts[strings.ToLower(u.Hostname())] {
			return types.URLDOIResolver, BoostDOIResolver
		}
	}

	for _, p := range htmlFulltextPatterns {
		if p.MatchString(lower) {
			return types.URLHTMLFulltext, BoostHTMLFulltext
		}
	}

	return types.URLUnknown, BoostUnknown
}

// pmcHosts covers both the legacy and modern PMC hostnames. The set must
// track both: cached PMC URLs get stripped on read when PMC is blocking
// programmatic access, and a stale host list would leave blocked URLs in
// the waterfall.
var pmcHosts = map[string]bool{
	"pmc.ncbi.nlm.nih.gov": true,
	"www.ncbi.nlm.nih.gov": true,
	"ncbi.nlm.nih.gov":     true,
}

// IsPMCHost reports whether the URL routes to PubMed Central. For the
// shared ncbi.nlm.nih.gov hosts only /pmc/ paths count.
func IsPMCHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if !pmcHosts[host] {
		return false
	}
	if host == "pmc.ncbi.nlm.nih.gov" {
		return true
	}
	return strings.HasPrefix(u.Path, "/pmc/")
}

// trackingParams are stripped during normalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
}

// Normalize canonicalizes scheme and host and strips tracking parameters.
// Unparseable input is returned unchanged so it can still be attempted.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)

	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			if trackingParams[strings.ToLower(param)] {
				q.Del(param)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Fragment = ""
	return u.String()
}
