// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download acquires PDFs by walking a publication's candidate
// URLs in priority order. The waterfall is serial per publication; a
// shared semaphore bounds publications in flight across all datasets.
package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-fulltext/internal/classify"
	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

var pdfMagic = []byte("%PDF-")

// landingBodyCap bounds how much of a landing page the extractor reads.
const landingBodyCap = 2 << 20

// errNotPDF marks a response whose body failed magic or size validation.
var errNotPDF = errors.New("response is not a valid PDF")

// Manager runs the P3 waterfall.
type Manager struct {
	http          *http.Client
	cfg           types.DownloadConfig
	institutional bool
	root          string // pdfs/ directory under the storage root
	sem           *semaphore.Weighted
	reportPMC     func(blocked bool)
	log           logx.Logger
}

// NewManager builds the download manager. sem is the process-wide
// publication-download semaphore shared by every in-flight dataset;
// reportPMC feeds PMC-hosted outcomes into the block breaker.
func NewManager(client *http.Client, cfg types.Config, sem *semaphore.Weighted, reportPMC func(bool), log logx.Logger) *Manager {
	if reportPMC == nil {
		reportPMC = func(bool) {}
	}
	return &Manager{
		http:          client,
		cfg:           cfg.Download,
		institutional: cfg.Sources.EnableInstitutional && cfg.Sources.InstitutionalProxy != "",
		root:          filepath.Join(cfg.StorageRoot, "pdfs"),
		sem:           sem,
		reportPMC:     reportPMC,
		log:           log.WithSource("download"),
	}
}

// Download walks candidates in order and stops at the first validated
// PDF. Every attempt is recorded whether it succeeds or not, so a failed
// waterfall still explains which sources were tried.
func (m *Manager) Download(ctx context.Context, geoID string, rel types.Relationship, pub *types.Publication, candidates []types.URLCandidate) *types.DownloadResult {
	res := &types.DownloadResult{}
	if len(candidates) == 0 {
		return res
	}
	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return res
		}
		defer m.sem.Release(1)
	}

	dest := filepath.Join(m.root, geoID, string(rel), pub.Key()+".pdf")
	for _, cand := range candidates {
		attempt := types.DownloadAttempt{
			PubKey:    pub.Key(),
			URL:       cand.URL,
			Source:    cand.Source,
			Timestamp: time.Now().UTC(),
		}

		if cand.RequiresAuth && !m.institutional {
			attempt.Status = types.AttemptSkipped
			attempt.Error = "requires institutional access"
			res.Attempts = append(res.Attempts, attempt)
			continue
		}

		path, size, sum, err := m.attempt(ctx, cand, dest)
		if err == nil {
			attempt.Status = types.AttemptSuccess
			attempt.FilePath = path
			attempt.FileSize = size
			attempt.SHA256 = sum
			res.Attempts = append(res.Attempts, attempt)
			res.Success = true
			res.FilePath = path
			res.SHA256 = sum
			res.Source = cand.Source
			m.log.OK("downloaded pdf", logx.F("key", pub.Key()), logx.F("via", cand.Source), logx.F("size", size))
			return res
		}

		attempt.Status = statusFor(err)
		attempt.Error = err.Error()
		res.Attempts = append(res.Attempts, attempt)
		m.log.Fail("attempt failed", logx.F("key", pub.Key()), logx.F("via", cand.Source), logx.F("err", err))
	}

	m.log.Fail("waterfall exhausted", logx.F("key", pub.Key()), logx.F("tried", len(res.Attempts)))
	return res
}

// httpStatusError carries a terminal non-2xx response through the
// waterfall so paywalls can be told apart from plain failures.
type httpStatusError struct {
	code int
	url  string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.code, e.url)
}

func statusFor(err error) types.AttemptStatus {
	var se *httpStatusError
	if errors.As(err, &se) && (se.code == http.StatusForbidden || se.code == http.StatusPaymentRequired) {
		return types.AttemptPaywalled
	}
	return types.AttemptFailed
}

// attempt resolves one candidate to a validated PDF on disk. Non-direct
// candidates get one level of landing-page extraction, then the found
// URL is fetched as a direct PDF at the same priority.
func (m *Manager) attempt(ctx context.Context, cand types.URLCandidate, dest string) (string, int64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	target := cand.URL
	if cand.Type != types.URLDirectPDF {
		found, err := m.resolveLanding(ctx, cand.URL)
		if err != nil {
			return "", 0, "", err
		}
		if found == "" {
			return "", 0, "", fmt.Errorf("no pdf link on landing page %s", cand.URL)
		}
		target = found
	}
	return m.fetchPDF(ctx, target, dest)
}

// resolveLanding fetches the page (redirects bounded by the shared
// client) and extracts the fronted PDF URL. DOI resolvers sometimes land
// on the PDF itself, in which case the post-redirect URL is returned.
func (m *Manager) resolveLanding(ctx context.Context, pageURL string) (string, error) {
	resp, err := m.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/pdf") {
		return finalURL(resp), nil
	}

	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(resp.Body, head)
	if n == len(pdfMagic) && bytes.Equal(head, pdfMagic) {
		return finalURL(resp), nil
	}

	body := io.MultiReader(bytes.NewReader(head[:n]), io.LimitReader(resp.Body, landingBodyCap))
	return ExtractPDFURL(body, finalURL(resp)), nil
}

// fetchPDF streams the response through a hash into a temp file,
// validating the %PDF- magic and the size bounds, then renames into the
// content-addressed destination.
func (m *Manager) fetchPDF(ctx context.Context, rawURL, dest string) (string, int64, string, error) {
	resp, err := m.get(ctx, rawURL)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(resp.Body, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return "", 0, "", fmt.Errorf("%w: bad magic from %s", errNotPDF, rawURL)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", 0, "", fmt.Errorf("creating pdf dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return "", 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { tmp.Close(); os.Remove(tmpPath) }

	hash := sha256.New()
	out := io.MultiWriter(tmp, hash)
	if _, err := out.Write(head); err != nil {
		cleanup()
		return "", 0, "", fmt.Errorf("writing pdf: %w", err)
	}
	// The magic bytes already written push an at-cap body over the
	// limit, so oversize responses are detectable without reading past it.
	n, err := io.Copy(out, io.LimitReader(resp.Body, m.cfg.MaxFileSize))
	if err != nil {
		cleanup()
		return "", 0, "", fmt.Errorf("streaming pdf: %w", err)
	}
	size := n + int64(len(head))
	if size > m.cfg.MaxFileSize {
		cleanup()
		return "", 0, "", fmt.Errorf("%w: %d bytes exceeds cap", errNotPDF, size)
	}
	if size < m.cfg.MinFileSize {
		cleanup()
		return "", 0, "", fmt.Errorf("%w: %d bytes below minimum", errNotPDF, size)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", 0, "", fmt.Errorf("renaming pdf: %w", err)
	}
	return dest, size, hex.EncodeToString(hash.Sum(nil)), nil
}

// get issues a bounded GET with the retry wrapper and converts terminal
// statuses into httpStatusError. PMC-hosted outcomes feed the breaker.
func (m *Manager) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,*/*;q=0.8")

	resp, err := httpx.DoWithRetry(ctx, m.http, req)
	if err != nil {
		return nil, err
	}
	if classify.IsPMCHost(rawURL) {
		m.reportPMC(resp.StatusCode == http.StatusForbidden)
	}
	if resp.StatusCode != http.StatusOK {
		code := resp.StatusCode
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{code: code, url: rawURL}
	}
	return resp, nil
}

func finalURL(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return ""
}
