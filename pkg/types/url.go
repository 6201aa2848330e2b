// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// URLType classifies a candidate URL without touching the network.
type URLType string

const (
	URLDirectPDF    URLType = "direct-pdf"
	URLHTMLFulltext URLType = "html-fulltext"
	URLLandingPage  URLType = "landing-page"
	URLDOIResolver  URLType = "doi-resolver"
	URLUnknown      URLType = "unknown"
)

// URLCandidate is one full-text location for a publication. Lower Priority
// is tried first; the classifier adjusts a source's base priority by the
// type boost. Candidates observed in any collection run are retained.
type URLCandidate struct {
	URL          string            `json:"url"`
	Source       string            `json:"source"`
	Type         URLType           `json:"url_type"`
	Priority     int               `json:"priority"`
	Confidence   float64           `json:"confidence,omitempty"`
	RequiresAuth bool              `json:"requires_auth,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
