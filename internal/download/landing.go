// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractPDFURL scans a landing page for the PDF it fronts. Checked in
// order: the citation_pdf_url meta tag (Highwire convention, honored by
// most publishers), alternate links typed application/pdf, then anchors
// whose target looks like a PDF. Returns "" when nothing matches.
func ExtractPDFURL(body io.Reader, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return ""
	}

	if href, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok {
		return absolute(pageURL, href)
	}

	found := ""
	doc.Find(`link[rel="alternate"], link[rel="view-pdf"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if typ, _ := s.Attr("type"); typ == "application/pdf" {
			if href, ok := s.Attr("href"); ok {
				found = absolute(pageURL, href)
				return false
			}
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if looksLikePDF(href) {
			found = absolute(pageURL, href)
			return false
		}
		return true
	})
	return found
}

func looksLikePDF(href string) bool {
	lower := strings.ToLower(href)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".pdf") || strings.Contains(lower, "/pdf/")
}

// absolute resolves href against the page URL.
func absolute(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
