// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// SnapshotOptions tune GetComplete.
type SnapshotOptions struct {
	// IncludeRejected surfaces quality-rejected citing papers.
	IncludeRejected bool

	// Verify recomputes the SHA-256 of each downloaded PDF. A mismatch
	// or missing file drops the pdf_path from the record and the
	// publication from the full-text count.
	Verify bool

	// ParsedSummary loads the per-publication parsed projection. Left to
	// the caller because it reads the warm tier, not the registry.
	ParsedSummary func(contentSHA string) *types.ParsedSummary
}

// GetComplete assembles the full dataset view in one transaction:
// metadata, publications with download history and parsed refs, and
// aggregate statistics.
func (r *Registry) GetComplete(ctx context.Context, geoID string, opts SnapshotOptions) (*types.DatasetSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback()

	ds, err := scanDataset(tx.QueryRowContext(ctx, `
		SELECT geo_id, title, summary, organism, platform, sample_count, publish_date, pubmed_ids
		FROM datasets WHERE geo_id = ?`, geoID))
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, nil
	}

	var level int
	if err := tx.QueryRowContext(ctx,
		`SELECT completeness_level FROM datasets WHERE geo_id = ?`, geoID).Scan(&level); err != nil {
		return nil, fmt.Errorf("reading level: %w", err)
	}

	snap := &types.DatasetSnapshot{
		GeoID:        geoID,
		Metadata:     *ds,
		Completeness: types.CompletenessLevel(level),
		Level:        types.CompletenessLevel(level).String(),
	}

	records, err := r.loadPublications(ctx, tx, geoID, opts)
	if err != nil {
		return nil, err
	}
	snap.Publications = records

	for i := range snap.Publications {
		rec := &snap.Publications[i]
		switch rec.PaperType {
		case types.RelationOriginal:
			snap.Statistics.Original++
		case types.RelationCiting:
			snap.Statistics.Citing++
		}
		if rec.PDFPath != "" {
			snap.Statistics.SuccessfulDownloads++
			snap.FulltextCount++
		} else if len(rec.DownloadHistory) > 0 {
			snap.Statistics.FailedDownloads++
		}
	}
	if attempted := snap.Statistics.SuccessfulDownloads + snap.Statistics.FailedDownloads; attempted > 0 {
		snap.Statistics.SuccessRate = float64(snap.Statistics.SuccessfulDownloads) / float64(attempted)
	}
	snap.FulltextStatus = fulltextStatus(len(snap.Publications), snap.FulltextCount)
	return snap, nil
}

func fulltextStatus(pubs, fulltext int) string {
	switch {
	case pubs == 0 || fulltext == 0:
		return "none"
	case fulltext == pubs:
		return "complete"
	default:
		return "partial"
	}
}

func (r *Registry) loadPublications(ctx context.Context, tx *sql.Tx, geoID string, opts SnapshotOptions) ([]types.PublicationRecord, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT p.pub_key, p.pmid, p.pmcid, p.doi, p.arxiv_id, p.title, p.authors, p.journal, p.year,
			p.quality_band, dp.relationship,
			COALESCE(pc.content_sha256, ''), COALESCE(pc.quality_score, 0)
		FROM dataset_publications dp
		JOIN publications p ON p.pub_key = dp.pub_key
		LEFT JOIN parsed_content pc ON pc.pub_key = dp.pub_key
		WHERE dp.geo_id = ?
		ORDER BY dp.relationship ASC, p.pub_key ASC`, geoID)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	var records []types.PublicationRecord
	var keys []string
	for rows.Next() {
		var rec types.PublicationRecord
		var key, authors, band, rel, contentSHA string
		var parsedQuality float64
		if err := rows.Scan(&key, &rec.PMID, &rec.PMCID, &rec.DOI, &rec.ArxivID, &rec.Title,
			&authors, &rec.Journal, &rec.Year, &band, &rel, &contentSHA, &parsedQuality); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		if authors != "" {
			json.Unmarshal([]byte(authors), &rec.Authors)
		}
		rec.QualityBand = types.QualityBand(band)
		rec.PaperType = types.Relationship(rel)
		if !opts.IncludeRejected && rec.PaperType == types.RelationCiting && rec.QualityBand == types.BandRejected {
			continue
		}
		if contentSHA != "" {
			if opts.ParsedSummary != nil {
				rec.Parsed = opts.ParsedSummary(contentSHA)
			}
			if rec.Parsed == nil {
				rec.Parsed = &types.ParsedSummary{ContentSHA256: contentSHA, QualityScore: parsedQuality}
			}
		}
		records = append(records, rec)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, key := range keys {
		history, err := loadAttempts(ctx, tx, key)
		if err != nil {
			return nil, err
		}
		rec := &records[i]
		rec.DownloadHistory = history
		for _, a := range history {
			if a.Status == types.AttemptSuccess {
				rec.PDFPath = a.FilePath
				rec.SHA256 = a.SHA256
			}
		}
		if opts.Verify && rec.PDFPath != "" && !verifyPDF(rec.PDFPath, rec.SHA256) {
			rec.PDFPath = ""
			rec.SHA256 = ""
		}
	}
	return records, nil
}

func loadAttempts(ctx context.Context, tx *sql.Tx, pubKey string) ([]types.DownloadAttempt, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT url, source, status, error, file_path, file_size, sha256, attempted_at
		FROM download_attempts WHERE pub_key = ? ORDER BY id ASC`, pubKey)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var attempts []types.DownloadAttempt
	for rows.Next() {
		a := types.DownloadAttempt{PubKey: pubKey}
		var status, ts string
		if err := rows.Scan(&a.URL, &a.Source, &status, &a.Error, &a.FilePath, &a.FileSize, &a.SHA256, &ts); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Status = types.AttemptStatus(status)
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			a.Timestamp = t
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// verifyPDF recomputes the file hash against the recorded one.
func verifyPDF(path, wantSHA string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return hex.EncodeToString(h.Sum(nil)) == wantSHA
}
