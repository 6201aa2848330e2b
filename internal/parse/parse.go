// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse turns downloaded PDFs into normalized section maps. The
// extractor is text-layer only; scanned PDFs without a text layer come
// out empty and score accordingly. No OCR.
package parse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// ParserName labels extracted content with the engine that produced it.
const ParserName = "ledongthuc-pdf"

// Terminal extraction failures. The pipeline records these as permanent;
// they never count toward the retry budget.
var (
	ErrEncrypted  = errors.New("pdf is encrypted")
	ErrParseError = errors.New("pdf could not be parsed")
)

// Reason maps an extraction error onto the persisted failure reason.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEncrypted):
		return "encrypted"
	default:
		return "parse_error"
	}
}

// Parser extracts and segments PDF text.
type Parser struct {
	log logx.Logger
}

// New builds a parser.
func New(log logx.Logger) *Parser {
	return &Parser{log: log.WithSource("parse")}
}

// Extract opens the PDF, linearizes its text with page breaks preserved,
// and segments it into the canonical section map. A section-less
// extraction is still returned; the quality score carries the
// degradation. Encrypted or corrupt files return an error instead.
func (p *Parser) Extract(path string) (content *types.ParsedContent, err error) {
	// The pdf package panics on some malformed cross-reference tables;
	// a corrupt file must surface as a parse error, not kill the worker.
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("%w: %s: %v", ErrParseError, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return nil, fmt.Errorf("%w: %s", ErrEncrypted, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrParseError, path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One bad page does not sink the document.
			p.log.Warn("page extraction failed", logx.F("path", path), logx.F("page", i))
			continue
		}
		pages = append(pages, text)
	}

	content = segment(pages)
	content.Parser = ParserName
	content.ParsedAt = time.Now().UTC()
	content.PageCount = r.NumPage()

	p.log.OK("extracted pdf", logx.F("path", path),
		logx.F("sections", len(content.Sections)), logx.F("quality", content.QualityScore))
	return content, nil
}
