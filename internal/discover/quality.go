// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"time"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Scoring weights. The four factors sum to 1.
const (
	weightAbstract  = 0.25
	weightCitations = 0.30
	weightJournal   = 0.20
	weightRecency   = 0.25
)

// Saturation points: an abstract this long or a citation count this high
// earns the full factor.
const (
	abstractSaturation = 1000 // characters
	citationSaturation = 50
	recencyWindowYears = 20
)

// Score rates a publication on abstract length, citation count, journal
// presence, and recency, each in [0,1], weighted into a single score.
// Identifier-only records (a bare DOI from OpenCitations) score near
// zero until a richer source fills them in.
func Score(pub *types.Publication) float64 {
	score := 0.0

	if n := len(pub.Abstract); n > 0 {
		frac := float64(n) / abstractSaturation
		if frac > 1 {
			frac = 1
		}
		score += weightAbstract * frac
	}

	if pub.CitationCount > 0 {
		frac := float64(pub.CitationCount) / citationSaturation
		if frac > 1 {
			frac = 1
		}
		score += weightCitations * frac
	}

	if pub.Journal != "" {
		score += weightJournal
	}

	if pub.Year > 0 {
		age := time.Now().Year() - pub.Year
		if age < 0 {
			age = 0
		}
		frac := 1 - float64(age)/recencyWindowYears
		if frac < 0 {
			frac = 0
		}
		score += weightRecency * frac
	}

	return score
}

// Band discretizes a score into its quality band.
func Band(score float64) types.QualityBand {
	switch {
	case score >= 0.75:
		return types.BandExcellent
	case score >= 0.55:
		return types.BandGood
	case score >= 0.35:
		return types.BandAcceptable
	case score >= 0.15:
		return types.BandPoor
	default:
		return types.BandRejected
	}
}
