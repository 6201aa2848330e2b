// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

var samplePages = []string{
	`Astrocyte Transcriptome Journal
Abstract
We profile the transcriptome of purified astrocytes and neurons in the
developing cortex.
Introduction
Astrocytes are the most abundant glial cell type.
1
`,
	`Astrocyte Transcriptome Journal
Materials and Methods
Cells were purified by immunopanning and sequenced on an Illumina
platform. Reads were aligned with re-
producible parameters.
Figure 1. Purification workflow for each cell type.
2
`,
	`Astrocyte Transcriptome Journal
Results
We identified 48 astrocyte-enriched transcripts.
Table 2: Differentially expressed genes by cell type.
Discussion
These data suggest a division of labor between cell types.
3
`,
}

func TestSegmentSections(t *testing.T) {
	content := segment(samplePages)

	for _, name := range []string{
		types.SectionAbstract, types.SectionIntroduction, types.SectionMethods,
		types.SectionResults, types.SectionDiscussion,
	} {
		if content.Sections[name] == "" {
			t.Errorf("section %q missing", name)
		}
	}
	if got := content.Sections[types.SectionAbstract]; !strings.Contains(got, "profile the transcriptome") {
		t.Errorf("abstract = %q", got)
	}
	if got := content.Sections[types.SectionResults]; !strings.Contains(got, "48 astrocyte-enriched") {
		t.Errorf("results = %q", got)
	}
}

func TestSegmentCaptions(t *testing.T) {
	content := segment(samplePages)

	if len(content.FigureCaptions) != 1 || !strings.Contains(content.FigureCaptions[0], "Purification workflow") {
		t.Errorf("figure captions = %v", content.FigureCaptions)
	}
	if len(content.Tables) != 1 || !strings.Contains(content.Tables[0], "Differentially expressed") {
		t.Errorf("tables = %v", content.Tables)
	}
	// Captions never leak into section bodies.
	for name, text := range content.Sections {
		if strings.Contains(text, "Purification workflow") {
			t.Errorf("caption leaked into section %q", name)
		}
	}
}

func TestNormalizeStripsRunningHeaders(t *testing.T) {
	lines := normalize(samplePages)
	joined := strings.Join(lines, "\n")

	if strings.Contains(joined, "Astrocyte Transcriptome Journal") {
		t.Error("running header survived normalization")
	}
	for _, n := range []string{"\n1\n", "\n2\n", "\n3\n"} {
		if strings.Contains("\n"+joined+"\n", n) {
			t.Errorf("page number %q survived", strings.TrimSpace(n))
		}
	}
}

func TestNormalizeRecoversHyphenation(t *testing.T) {
	content := segment(samplePages)
	if !strings.Contains(content.Sections[types.SectionMethods], "reproducible") {
		t.Errorf("hyphenated word not recovered: %q", content.Sections[types.SectionMethods])
	}
}

func TestSegmentSectionless(t *testing.T) {
	content := segment([]string{"Just some text with no headers at all.\nMore text here.\n"})

	if content.Sections[types.SectionIntroduction] == "" {
		t.Error("leading content not assigned to introduction")
	}
	full := segment(samplePages)
	if content.QualityScore >= full.QualityScore {
		t.Errorf("sectionless score %f not below full score %f", content.QualityScore, full.QualityScore)
	}
}

func TestContentHashDeterministic(t *testing.T) {
	a := segment(samplePages)
	b := segment(samplePages)
	if a.ContentSHA256 != b.ContentSHA256 {
		t.Error("hash not deterministic")
	}
	c := segment(samplePages[:2])
	if c.ContentSHA256 == a.ContentSHA256 {
		t.Error("different content produced the same hash")
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 this is not really a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(logx.Nop()).Extract(path)
	if err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
	if !errors.Is(err, ErrParseError) {
		t.Errorf("error = %v, want ErrParseError", err)
	}
	if Reason(err) != "parse_error" {
		t.Errorf("Reason = %q", Reason(err))
	}
}

func TestReason(t *testing.T) {
	if Reason(nil) != "" {
		t.Error("nil error should have empty reason")
	}
	if Reason(ErrEncrypted) != "encrypted" {
		t.Errorf("Reason(ErrEncrypted) = %q", Reason(ErrEncrypted))
	}
	if Reason(errors.New("anything else")) != "parse_error" {
		t.Errorf("fallback reason = %q", Reason(errors.New("x")))
	}
}
