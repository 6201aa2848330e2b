// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Section names in canonical order. Segmentation assigns every extracted
// line to exactly one of these.
const (
	SectionAbstract     = "abstract"
	SectionIntroduction = "introduction"
	SectionMethods      = "methods"
	SectionResults      = "results"
	SectionDiscussion   = "discussion"
	SectionConclusion   = "conclusion"
)

// SectionOrder lists canonical sections in document order.
var SectionOrder = []string{
	SectionAbstract,
	SectionIntroduction,
	SectionMethods,
	SectionResults,
	SectionDiscussion,
	SectionConclusion,
}

// ParsedContent is the normalized section map extracted from one PDF.
// ContentSHA256 is computed over the normalized sections and determines
// identity: the same PDF bytes always yield the same key, so content is
// shared across datasets citing the same paper.
type ParsedContent struct {
	Sections       map[string]string `json:"sections"`
	Tables         []string          `json:"tables,omitempty"`
	FigureCaptions []string          `json:"figure_captions,omitempty"`
	ContentSHA256  string            `json:"content_sha256"`
	QualityScore   float64           `json:"quality_score"`
	Parser         string            `json:"parser"`
	ParsedAt       time.Time         `json:"parsed_at"`
	PageCount      int               `json:"page_count,omitempty"`
}

// ParsedSummary is the lightweight projection returned in snapshots.
type ParsedSummary struct {
	ContentSHA256 string         `json:"content_sha256"`
	QualityScore  float64        `json:"quality_score"`
	SectionTokens map[string]int `json:"section_tokens,omitempty"`
}

// Summary builds the snapshot projection with per-section token counts.
func (p *ParsedContent) Summary() ParsedSummary {
	tokens := make(map[string]int, len(p.Sections))
	for name, text := range p.Sections {
		tokens[name] = countTokens(text)
	}
	return ParsedSummary{
		ContentSHA256: p.ContentSHA256,
		QualityScore:  p.QualityScore,
		SectionTokens: tokens,
	}
}

func countTokens(s string) int {
	n := 0
	inTok := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			inTok = false
			continue
		}
		if !inTok {
			n++
			inTok = true
		}
	}
	return n
}
