// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"testing"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantType  types.URLType
		wantBoost int
	}{
		{"pdf extension", "https://example.com/papers/x.pdf", types.URLDirectPDF, -2},
		{"pdf with query", "https://example.com/x.pdf?download=1", types.URLDirectPDF, -2},
		{"arxiv pdf", "https://arxiv.org/pdf/2301.07041", types.URLDirectPDF, -2},
		{"pmc pdf", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1087880/pdf/", types.URLDirectPDF, -2},
		{"modern pmc pdf", "https://pmc.ncbi.nlm.nih.gov/articles/PMC1087880/pdf/", types.URLDirectPDF, -2},
		{"pdf render", "https://journals.plos.org/article/file?id=10.1371/x&pdf=render", types.URLDirectPDF, -2},
		{"biorxiv full pdf", "https://www.biorxiv.org/content/10.1101/2024.01.01.573887v1.full.pdf", types.URLDirectPDF, -2},
		{"doi resolver", "https://doi.org/10.1126/science.1258096", types.URLDOIResolver, 3},
		{"dx doi", "https://dx.doi.org/10.1038/nature12373", types.URLDOIResolver, 3},
		{"elsevier linkinghub", "https://linkinghub.elsevier.com/retrieve/pii/S0092867413012345", types.URLDOIResolver, 3},
		{"pmc article page", "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1087880/", types.URLHTMLFulltext, 0},
		{"modern pmc article page", "https://pmc.ncbi.nlm.nih.gov/articles/PMC1087880/", types.URLHTMLFulltext, 0},
		{"europepmc article", "https://europepmc.org/article/MED/15780141", types.URLHTMLFulltext, 0},
		{"unknown repository", "https://hal.science/hal-01234567", types.URLUnknown, 1},
		{"garbage", "not a url", types.URLUnknown, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotBoost := Classify(tt.url)
			if gotType != tt.wantType {
				t.Errorf("Classify(%q) type = %v, want %v", tt.url, gotType, tt.wantType)
			}
			if gotBoost != tt.wantBoost {
				t.Errorf("Classify(%q) boost = %d, want %d", tt.url, gotBoost, tt.wantBoost)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	u := "https://arxiv.org/pdf/2301.07041"
	firstType, firstBoost := Classify(u)
	for i := 0; i < 100; i++ {
		gotType, gotBoost := Classify(u)
		if gotType != firstType || gotBoost != firstBoost {
			t.Fatalf("Classify(%q) not deterministic: got (%v, %d), want (%v, %d)",
				u, gotType, gotBoost, firstType, firstBoost)
		}
	}
}

func TestIsPMCHost(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://pmc.ncbi.nlm.nih.gov/articles/PMC1087880/", true},
		{"https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1087880/pdf/", true},
		{"https://ncbi.nlm.nih.gov/pmc/articles/PMC1087880/", true},
		{"https://www.ncbi.nlm.nih.gov/pubmed/15780141", false},
		{"https://europepmc.org/article/MED/15780141", false},
		{"https://example.com/pmc/articles/PMC1/", false},
		{"::bad::", false},
	}
	for _, tt := range tests {
		if got := IsPMCHost(tt.url); got != tt.want {
			t.Errorf("IsPMCHost(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"strips tracking", "https://Example.com/a?utm_source=x&id=5", "https://example.com/a?id=5"},
		{"lowercases host", "HTTPS://WWW.Example.COM/Path", "https://www.example.com/Path"},
		{"drops fragment", "https://example.com/a#sec2", "https://example.com/a"},
		{"unparseable unchanged", "not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.url); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
