// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// samplePDF is a minimal body that passes magic and size validation.
var samplePDF = []byte("%PDF-1.4\n" + strings.Repeat("x", 2048) + "\n%%EOF")

func newTestManager(t *testing.T) (*Manager, *bool) {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	cfg.Download.MinFileSize = 64

	var blocked bool
	report := func(b bool) { blocked = b }
	return NewManager(http.DefaultClient, cfg, nil, report, logx.Nop()), &blocked
}

func testPub() *types.Publication {
	return &types.Publication{PMID: "25186741"}
}

func TestDownloadDirectPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(samplePDF)
	}))
	defer srv.Close()

	m, _ := newTestManager(t)
	res := m.Download(context.Background(), "GSE52564", types.RelationOriginal, testPub(), []types.URLCandidate{
		{URL: srv.URL + "/article.pdf", Source: "unpaywall", Type: types.URLDirectPDF, Priority: 8},
	})

	if !res.Success {
		t.Fatalf("download failed: %+v", res.Attempts)
	}
	wantSum := sha256.Sum256(samplePDF)
	if res.SHA256 != hex.EncodeToString(wantSum[:]) {
		t.Errorf("sha256 = %s", res.SHA256)
	}
	wantPath := filepath.Join("GSE52564", "original", "pmid-25186741.pdf")
	if !strings.HasSuffix(res.FilePath, wantPath) {
		t.Errorf("path = %s, want suffix %s", res.FilePath, wantPath)
	}
	data, err := os.ReadFile(res.FilePath)
	if err != nil || string(data) != string(samplePDF) {
		t.Errorf("on-disk content mismatch (err=%v)", err)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Status != types.AttemptSuccess {
		t.Errorf("attempts = %+v", res.Attempts)
	}
}

func TestDownloadWaterfallAdvances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken.pdf":
			w.Write([]byte("<html>not a pdf</html>"))
		case "/good.pdf":
			w.Write(samplePDF)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m, _ := newTestManager(t)
	res := m.Download(context.Background(), "GSE52564", types.RelationCiting, testPub(), []types.URLCandidate{
		{URL: srv.URL + "/broken.pdf", Source: "openalex", Type: types.URLDirectPDF, Priority: 18},
		{URL: srv.URL + "/good.pdf", Source: "crossref", Type: types.URLDirectPDF, Priority: 38},
	})

	if !res.Success || res.Source != "crossref" {
		t.Fatalf("success=%v source=%s", res.Success, res.Source)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}
	if res.Attempts[0].Status != types.AttemptFailed {
		t.Errorf("first attempt status = %s", res.Attempts[0].Status)
	}
}

func TestDownloadLandingPageExtraction(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><head>
				<meta name="citation_pdf_url" content="` + srvURL + `/files/article.pdf">
				</head><body></body></html>`))
		case "/files/article.pdf":
			w.Write(samplePDF)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	m, _ := newTestManager(t)
	res := m.Download(context.Background(), "GSE52564", types.RelationCiting, testPub(), []types.URLCandidate{
		{URL: srv.URL + "/article", Source: "pubmed", Type: types.URLLandingPage, Priority: 36},
	})

	if !res.Success {
		t.Fatalf("landing extraction failed: %+v", res.Attempts)
	}
}

func TestDownloadPaywalled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "subscribe", http.StatusForbidden)
	}))
	defer srv.Close()

	m, _ := newTestManager(t)
	res := m.Download(context.Background(), "GSE52564", types.RelationCiting, testPub(), []types.URLCandidate{
		{URL: srv.URL + "/locked.pdf", Source: "crossref", Type: types.URLDirectPDF, Priority: 38},
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts[0].Status != types.AttemptPaywalled {
		t.Errorf("status = %s, want paywalled", res.Attempts[0].Status)
	}
}

func TestDownloadSkipsAuthCandidates(t *testing.T) {
	m, _ := newTestManager(t)
	res := m.Download(context.Background(), "GSE52564", types.RelationCiting, testPub(), []types.URLCandidate{
		{URL: "https://proxy.example.edu/login?url=x", Source: "institutional", Priority: 70, RequiresAuth: true},
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Attempts[0].Status != types.AttemptSkipped {
		t.Errorf("status = %s, want skipped", res.Attempts[0].Status)
	}
}

func TestDownloadSizeBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4")) // below minimum
	}))
	defer srv.Close()

	m, _ := newTestManager(t)
	res := m.Download(context.Background(), "GSE52564", types.RelationCiting, testPub(), []types.URLCandidate{
		{URL: srv.URL + "/tiny.pdf", Source: "core", Type: types.URLDirectPDF, Priority: 48},
	})
	if res.Success {
		t.Fatal("expected truncated body to fail validation")
	}

	// No partial file may survive a failed attempt.
	entries, _ := filepath.Glob(filepath.Join(m.root, "GSE52564", "*", "*"))
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestDownloadReportsPMCOutcome(t *testing.T) {
	origDelay := httpx.RetryBaseDelay
	httpx.RetryBaseDelay = 0
	defer func() { httpx.RetryBaseDelay = origDelay }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	m, blocked := newTestManager(t)

	// The breaker feed keys off the real PMC host, so point a PMC URL at
	// the test server through a host-rewriting transport.
	m.http = &http.Client{Transport: rewriteHost{srv.URL}}
	res := m.Download(context.Background(), "GSE52564", types.RelationCiting, testPub(), []types.URLCandidate{
		{URL: "https://pmc.ncbi.nlm.nih.gov/articles/PMC4430743/pdf/", Source: "pmc", Type: types.URLDirectPDF, Priority: 28},
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if !*blocked {
		t.Error("403 from PMC host did not report blocked")
	}
}

// rewriteHost redirects every request to the test server.
type rewriteHost struct{ target string }

func (rt rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	u := *req.URL
	u.Scheme = "http"
	u.Host = strings.TrimPrefix(rt.target, "http://")
	clone := req.Clone(req.Context())
	clone.URL = &u
	return http.DefaultTransport.RoundTrip(clone)
}

func TestExtractPDFURL(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"citation meta",
			`<head><meta name="citation_pdf_url" content="https://pub.example.org/a.pdf"></head>`,
			"https://pub.example.org/a.pdf",
		},
		{
			"relative citation meta",
			`<head><meta name="citation_pdf_url" content="/files/a.pdf"></head>`,
			"https://journal.example.org/files/a.pdf",
		},
		{
			"alternate link",
			`<head><link rel="alternate" type="application/pdf" href="/a.pdf"></head>`,
			"https://journal.example.org/a.pdf",
		},
		{
			"anchor fallback",
			`<body><a href="/download/a.pdf?inline=1">Full text PDF</a></body>`,
			"https://journal.example.org/download/a.pdf?inline=1",
		},
		{
			"nothing",
			`<body><a href="/about">About</a></body>`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPDFURL(strings.NewReader(tt.html), "https://journal.example.org/article")
			if got != tt.want {
				t.Errorf("ExtractPDFURL = %q, want %q", got, tt.want)
			}
		})
	}
}
