// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// sectionPatterns detect canonical section headers at line start. A
// header line must also be short; running prose mentioning "results"
// mid-sentence never matches.
var sectionPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{types.SectionAbstract, regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?abstract\b`)},
	{types.SectionMethods, regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?(?:materials\s+and\s+)?methods\b|^(?:\d+[.)]?\s*)?experimental\s+procedures\b`)},
	{types.SectionResults, regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?results\b`)},
	{types.SectionConclusion, regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?(?:conclusions?|concluding\s+remarks)\b`)},
	{types.SectionDiscussion, regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?discussion\b`)},
	{types.SectionIntroduction, regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?(?:introduction|background)\b`)},
}

const maxHeaderLen = 60

// captionPattern anchors figure and table captions at line start.
var captionPattern = regexp.MustCompile(`(?i)^(fig(?:ure)?\.?|table)\s+(\d+)[.:]?\s+(.+)`)

// pageNumberPattern matches bare page-number lines.
var pageNumberPattern = regexp.MustCompile(`^\s*(?:page\s+)?\d+(?:\s+of\s+\d+)?\s*$`)

// hyphenBreak joins words split across line breaks.
var hyphenBreak = regexp.MustCompile(`(\p{L})-\n(\p{L})`)

// segment builds the normalized ParsedContent from per-page text.
func segment(pages []string) *types.ParsedContent {
	lines := normalize(pages)

	sections := map[string]*strings.Builder{}
	var tables, captions []string

	// Unknown leading content belongs to the introduction; unknown
	// trailing content accrues to the last seen header, which for a
	// typical paper is the discussion.
	current := types.SectionIntroduction
	for _, line := range lines {
		if m := captionPattern.FindStringSubmatch(line); m != nil {
			if strings.HasPrefix(strings.ToLower(m[1]), "table") {
				tables = append(tables, line)
			} else {
				captions = append(captions, line)
			}
			continue
		}
		if name, ok := matchHeader(line); ok {
			current = name
			continue
		}
		b, ok := sections[current]
		if !ok {
			b = &strings.Builder{}
			sections[current] = b
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(line)
	}

	out := &types.ParsedContent{
		Sections:       make(map[string]string, len(sections)),
		Tables:         tables,
		FigureCaptions: captions,
	}
	headerHits := 0
	for name, b := range sections {
		out.Sections[name] = b.String()
	}
	for _, name := range types.SectionOrder {
		if name == types.SectionIntroduction {
			continue
		}
		if _, ok := out.Sections[name]; ok {
			headerHits++
		}
	}
	out.ContentSHA256 = contentHash(out.Sections)
	out.QualityScore = qualityScore(out.Sections, headerHits, len(tables)+len(captions))
	return out
}

func matchHeader(line string) (string, bool) {
	if len(line) > maxHeaderLen {
		return "", false
	}
	for _, sp := range sectionPatterns {
		if sp.re.MatchString(line) {
			return sp.name, true
		}
	}
	return "", false
}

// normalize linearizes pages into cleaned lines: hyphenation recovered,
// whitespace collapsed, bare page numbers and running headers dropped. A
// running header is any short line repeated on three or more pages.
func normalize(pages []string) []string {
	repeats := map[string]int{}
	perPage := make([][]string, len(pages))
	for i, page := range pages {
		page = hyphenBreak.ReplaceAllString(page, "$1$2")
		seen := map[string]bool{}
		for _, raw := range strings.Split(page, "\n") {
			line := strings.Join(strings.Fields(raw), " ")
			if line == "" {
				continue
			}
			perPage[i] = append(perPage[i], line)
			if len(line) <= 80 && !seen[line] {
				seen[line] = true
				repeats[line]++
			}
		}
	}

	var out []string
	for _, lines := range perPage {
		for _, line := range lines {
			if pageNumberPattern.MatchString(line) {
				continue
			}
			if len(line) <= 80 && repeats[line] >= 3 {
				continue
			}
			out = append(out, line)
		}
	}
	return out
}

// contentHash hashes the section map in canonical order. Identical PDF
// bytes therefore always yield the same key.
func contentHash(sections map[string]string) string {
	h := sha256.New()
	for _, name := range types.SectionOrder {
		text, ok := sections[name]
		if !ok {
			continue
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Token thresholds for a section to count as substantive.
const substantiveTokens = 50

// qualityScore blends section presence, per-section volume, and header
// detection confidence into [0,1]. Methods and results dominate: they
// are what downstream analysis reads.
func qualityScore(sections map[string]string, headerHits, captionCount int) float64 {
	presence := map[string]float64{
		types.SectionAbstract:     0.10,
		types.SectionIntroduction: 0.05,
		types.SectionMethods:      0.20,
		types.SectionResults:      0.20,
		types.SectionDiscussion:   0.10,
		types.SectionConclusion:   0.05,
	}

	score := 0.0
	for name, weight := range presence {
		text, ok := sections[name]
		if !ok || text == "" {
			continue
		}
		frac := float64(tokenCount(text)) / substantiveTokens
		if frac > 1 {
			frac = 1
		}
		score += weight * frac
	}

	// Detection confidence: how many real headers fired.
	conf := float64(headerHits) / 5.0
	if conf > 1 {
		conf = 1
	}
	score += 0.20 * conf

	if captionCount > 0 {
		score += 0.10
	}
	if score > 1 {
		score = 1
	}
	return score
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}
