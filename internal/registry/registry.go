// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry is the single source of truth for persisted dataset
// state: metadata, publications, URL candidates, download attempts,
// parsed-content links, and the per-stage enrichment ladder.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

const dbFile = "registry.db"

// Registry wraps the SQLite database.
type Registry struct {
	db *sql.DB
}

// Open creates or opens the registry database under dir.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	r := &Registry{db: db}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

// Close releases the database connection.
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			geo_id TEXT PRIMARY KEY,
			title TEXT,
			summary TEXT,
			organism TEXT,
			platform TEXT,
			sample_count INTEGER,
			publish_date TEXT,
			pubmed_ids TEXT,
			completeness_level INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			pub_key TEXT PRIMARY KEY,
			pmid TEXT,
			pmcid TEXT,
			doi TEXT,
			arxiv_id TEXT,
			title TEXT,
			authors TEXT,
			journal TEXT,
			year INTEGER,
			abstract TEXT,
			citation_count INTEGER,
			quality_score REAL,
			quality_band TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_publications (
			geo_id TEXT NOT NULL REFERENCES datasets(geo_id),
			pub_key TEXT NOT NULL REFERENCES publications(pub_key),
			relationship TEXT NOT NULL,
			discovery_source TEXT,
			PRIMARY KEY (geo_id, pub_key, relationship)
		)`,
		`CREATE TABLE IF NOT EXISTS url_candidates (
			pub_key TEXT NOT NULL REFERENCES publications(pub_key),
			url TEXT NOT NULL,
			source TEXT NOT NULL,
			url_type TEXT,
			priority INTEGER,
			confidence REAL,
			requires_auth INTEGER NOT NULL DEFAULT 0,
			blacklisted INTEGER NOT NULL DEFAULT 0,
			first_seen TEXT,
			PRIMARY KEY (pub_key, url)
		)`,
		`CREATE TABLE IF NOT EXISTS download_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pub_key TEXT NOT NULL,
			url TEXT,
			source TEXT,
			status TEXT NOT NULL,
			error TEXT,
			file_path TEXT,
			file_size INTEGER,
			sha256 TEXT,
			attempted_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_pub ON download_attempts(pub_key)`,
		`CREATE TABLE IF NOT EXISTS parsed_content (
			pub_key TEXT PRIMARY KEY REFERENCES publications(pub_key),
			content_sha256 TEXT,
			quality_score REAL,
			parser TEXT,
			page_count INTEGER,
			fail_reason TEXT,
			parsed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS enrichment_state (
			geo_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			last_attempt_at TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			PRIMARY KEY (geo_id, stage)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpsertDataset writes dataset metadata. Existing non-empty fields are
// kept when the incoming value is empty; completeness is untouched.
func (r *Registry) UpsertDataset(ctx context.Context, ds *types.GEODataset) error {
	pmids, err := json.Marshal(ds.PubmedIDs)
	if err != nil {
		return fmt.Errorf("encoding pubmed ids: %w", err)
	}
	publish := ""
	if !ds.PublishDate.IsZero() {
		publish = ds.PublishDate.UTC().Format(time.RFC3339)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO datasets (geo_id, title, summary, organism, platform, sample_count, publish_date, pubmed_ids, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(geo_id) DO UPDATE SET
			title        = CASE WHEN excluded.title        != '' THEN excluded.title        ELSE datasets.title        END,
			summary      = CASE WHEN excluded.summary      != '' THEN excluded.summary      ELSE datasets.summary      END,
			organism     = CASE WHEN excluded.organism     != '' THEN excluded.organism     ELSE datasets.organism     END,
			platform     = CASE WHEN excluded.platform     != '' THEN excluded.platform     ELSE datasets.platform     END,
			sample_count = CASE WHEN excluded.sample_count != 0  THEN excluded.sample_count ELSE datasets.sample_count END,
			publish_date = CASE WHEN excluded.publish_date != '' THEN excluded.publish_date ELSE datasets.publish_date END,
			pubmed_ids   = CASE WHEN excluded.pubmed_ids   != '[]' AND excluded.pubmed_ids != 'null' THEN excluded.pubmed_ids ELSE datasets.pubmed_ids END,
			updated_at   = excluded.updated_at`,
		ds.GeoID, ds.Title, ds.Summary, ds.Organism, ds.Platform, ds.SampleCount, publish, string(pmids), now())
	if err != nil {
		return fmt.Errorf("upserting dataset %s: %w", ds.GeoID, err)
	}
	return nil
}

// GetDataset loads dataset metadata. Unknown ids return (nil, nil).
func (r *Registry) GetDataset(ctx context.Context, geoID string) (*types.GEODataset, error) {
	return scanDataset(r.db.QueryRowContext(ctx, `
		SELECT geo_id, title, summary, organism, platform, sample_count, publish_date, pubmed_ids
		FROM datasets WHERE geo_id = ?`, geoID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*types.GEODataset, error) {
	var ds types.GEODataset
	var publish, pmids sql.NullString
	err := row.Scan(&ds.GeoID, &ds.Title, &ds.Summary, &ds.Organism, &ds.Platform,
		&ds.SampleCount, &publish, &pmids)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning dataset: %w", err)
	}
	if publish.String != "" {
		if t, err := time.Parse(time.RFC3339, publish.String); err == nil {
			ds.PublishDate = t
		}
	}
	if pmids.String != "" {
		json.Unmarshal([]byte(pmids.String), &ds.PubmedIDs)
	}
	return &ds, nil
}

// SetLevel advances the completeness level. Levels never regress here;
// regression requires explicit invalidation outside the pipeline.
func (r *Registry) SetLevel(ctx context.Context, geoID string, level types.CompletenessLevel) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE datasets SET completeness_level = ?, updated_at = ?
		WHERE geo_id = ? AND completeness_level < ?`,
		int(level), now(), geoID, int(level))
	if err != nil {
		return fmt.Errorf("setting level for %s: %w", geoID, err)
	}
	return nil
}

// GetLevel reads the persisted completeness level.
func (r *Registry) GetLevel(ctx context.Context, geoID string) (types.CompletenessLevel, error) {
	var level int
	err := r.db.QueryRowContext(ctx,
		`SELECT completeness_level FROM datasets WHERE geo_id = ?`, geoID).Scan(&level)
	if err == sql.ErrNoRows {
		return types.LevelNew, nil
	}
	if err != nil {
		return types.LevelNew, fmt.Errorf("reading level for %s: %w", geoID, err)
	}
	return types.CompletenessLevel(level), nil
}

// UpsertPublication writes a publication keyed by its primary key.
// Identifiers are monotonic: an empty incoming value never clears a
// stored one, and citation counts keep the maximum.
func (r *Registry) UpsertPublication(ctx context.Context, pub *types.Publication) error {
	key := pub.Key()
	if key == "" {
		return fmt.Errorf("publication has no identifier")
	}
	authors, err := json.Marshal(pub.Authors)
	if err != nil {
		return fmt.Errorf("encoding authors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO publications (pub_key, pmid, pmcid, doi, arxiv_id, title, authors, journal, year,
			abstract, citation_count, quality_score, quality_band, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pub_key) DO UPDATE SET
			pmid           = CASE WHEN publications.pmid     = '' THEN excluded.pmid     ELSE publications.pmid     END,
			pmcid          = CASE WHEN publications.pmcid    = '' THEN excluded.pmcid    ELSE publications.pmcid    END,
			doi            = CASE WHEN publications.doi      = '' THEN excluded.doi      ELSE publications.doi      END,
			arxiv_id       = CASE WHEN publications.arxiv_id = '' THEN excluded.arxiv_id ELSE publications.arxiv_id END,
			title          = CASE WHEN excluded.title    != '' THEN excluded.title    ELSE publications.title    END,
			authors        = CASE WHEN excluded.authors  != '[]' AND excluded.authors != 'null' THEN excluded.authors ELSE publications.authors END,
			journal        = CASE WHEN excluded.journal  != '' THEN excluded.journal  ELSE publications.journal  END,
			year           = CASE WHEN excluded.year     != 0  THEN excluded.year     ELSE publications.year     END,
			abstract       = CASE WHEN excluded.abstract != '' THEN excluded.abstract ELSE publications.abstract END,
			citation_count = MAX(publications.citation_count, excluded.citation_count),
			quality_score  = CASE WHEN excluded.quality_score != 0 THEN excluded.quality_score ELSE publications.quality_score END,
			quality_band   = CASE WHEN excluded.quality_band  != '' THEN excluded.quality_band ELSE publications.quality_band END,
			updated_at     = excluded.updated_at`,
		key, pub.PMID, pub.PMCID, pub.DOI, pub.ArxivID, pub.Title, string(authors), pub.Journal,
		pub.Year, pub.Abstract, pub.CitationCount, pub.QualityScore, string(pub.QualityBand), now())
	if err != nil {
		return fmt.Errorf("upserting publication %s: %w", key, err)
	}
	return nil
}

// Link ties a publication to a dataset under a relationship. The same
// publication may link to many datasets.
func (r *Registry) Link(ctx context.Context, geoID, pubKey string, rel types.Relationship, source string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dataset_publications (geo_id, pub_key, relationship, discovery_source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(geo_id, pub_key, relationship) DO NOTHING`,
		geoID, pubKey, string(rel), source)
	if err != nil {
		return fmt.Errorf("linking %s to %s: %w", pubKey, geoID, err)
	}
	return nil
}

// AddURLCandidates retains every candidate observed in a collection run.
// Re-observed URLs keep their original row; only the blacklist flag is
// ever mutated afterward.
func (r *Registry) AddURLCandidates(ctx context.Context, pubKey string, urls []types.URLCandidate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning candidates tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO url_candidates (pub_key, url, source, url_type, priority, confidence, requires_auth, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pub_key, url) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("preparing candidates insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, u := range urls {
		auth := 0
		if u.RequiresAuth {
			auth = 1
		}
		if _, err := stmt.ExecContext(ctx, pubKey, u.URL, u.Source, string(u.Type), u.Priority, u.Confidence, auth, ts); err != nil {
			return fmt.Errorf("inserting candidate %s: %w", u.URL, err)
		}
	}
	return tx.Commit()
}

// GetURLCandidates returns the retained, non-blacklisted candidates in
// waterfall order.
func (r *Registry) GetURLCandidates(ctx context.Context, pubKey string) ([]types.URLCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, source, url_type, priority, confidence, requires_auth
		FROM url_candidates
		WHERE pub_key = ? AND blacklisted = 0
		ORDER BY priority ASC, first_seen ASC`, pubKey)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var urls []types.URLCandidate
	for rows.Next() {
		var u types.URLCandidate
		var urlType string
		var auth int
		if err := rows.Scan(&u.URL, &u.Source, &urlType, &u.Priority, &u.Confidence, &auth); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		u.Type = types.URLType(urlType)
		u.RequiresAuth = auth != 0
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// SetBlacklisted flips the blacklist flag on every candidate whose URL
// matches the LIKE pattern. Used when a host-wide block is detected.
func (r *Registry) SetBlacklisted(ctx context.Context, urlLike string, blacklisted bool) (int64, error) {
	flag := 0
	if blacklisted {
		flag = 1
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE url_candidates SET blacklisted = ? WHERE url LIKE ?`, flag, urlLike)
	if err != nil {
		return 0, fmt.Errorf("updating blacklist: %w", err)
	}
	return res.RowsAffected()
}

// RecordAttempt appends a download attempt. Rows are never updated or
// deleted.
func (r *Registry) RecordAttempt(ctx context.Context, a *types.DownloadAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO download_attempts (pub_key, url, source, status, error, file_path, file_size, sha256, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PubKey, a.URL, a.Source, string(a.Status), a.Error, a.FilePath, a.FileSize, a.SHA256,
		a.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording attempt for %s: %w", a.PubKey, err)
	}
	return nil
}

// SetParsed upserts the publication's parsed-content link.
func (r *Registry) SetParsed(ctx context.Context, pubKey string, content *types.ParsedContent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO parsed_content (pub_key, content_sha256, quality_score, parser, page_count, fail_reason, parsed_at)
		VALUES (?, ?, ?, ?, ?, '', ?)
		ON CONFLICT(pub_key) DO UPDATE SET
			content_sha256 = excluded.content_sha256,
			quality_score  = excluded.quality_score,
			parser         = excluded.parser,
			page_count     = excluded.page_count,
			fail_reason    = '',
			parsed_at      = excluded.parsed_at`,
		pubKey, content.ContentSHA256, content.QualityScore, content.Parser, content.PageCount,
		content.ParsedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("setting parsed content for %s: %w", pubKey, err)
	}
	return nil
}

// ParseOutcome reports the stored extraction result for a publication:
// the content hash when parsing succeeded, or the terminal failure
// reason. Both empty means parsing has not run.
func (r *Registry) ParseOutcome(ctx context.Context, pubKey string) (contentSHA, failReason string, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT content_sha256, fail_reason FROM parsed_content WHERE pub_key = ?`, pubKey).
		Scan(&contentSHA, &failReason)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("reading parse outcome for %s: %w", pubKey, err)
	}
	return contentSHA, failReason, nil
}

// SetParseFailure records a terminal extraction failure (encrypted,
// parse_error) so the stage is not retried.
func (r *Registry) SetParseFailure(ctx context.Context, pubKey, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO parsed_content (pub_key, content_sha256, quality_score, parser, page_count, fail_reason, parsed_at)
		VALUES (?, '', 0, '', 0, ?, ?)
		ON CONFLICT(pub_key) DO UPDATE SET
			fail_reason = excluded.fail_reason,
			parsed_at   = excluded.parsed_at`,
		pubKey, reason, now())
	if err != nil {
		return fmt.Errorf("setting parse failure for %s: %w", pubKey, err)
	}
	return nil
}

// GetStageState reads the per-(dataset, stage) retry record. Missing
// rows return a zero-value pending state.
func (r *Registry) GetStageState(ctx context.Context, geoID, stage string) (*types.StageState, error) {
	st := &types.StageState{GeoID: geoID, Stage: stage, Status: types.StagePending}
	var last sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT status, last_attempt_at, retry_count, last_error
		FROM enrichment_state WHERE geo_id = ? AND stage = ?`, geoID, stage).
		Scan(&st.Status, &last, &st.RetryCount, &st.LastError)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading stage state: %w", err)
	}
	if last.String != "" {
		if t, err := time.Parse(time.RFC3339, last.String); err == nil {
			st.LastAttemptAt = t
		}
	}
	return st, nil
}

// SetStageState persists the per-(dataset, stage) retry record.
func (r *Registry) SetStageState(ctx context.Context, st *types.StageState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrichment_state (geo_id, stage, status, last_attempt_at, retry_count, last_error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(geo_id, stage) DO UPDATE SET
			status          = excluded.status,
			last_attempt_at = excluded.last_attempt_at,
			retry_count     = excluded.retry_count,
			last_error      = excluded.last_error`,
		st.GeoID, st.Stage, string(st.Status), st.LastAttemptAt.UTC().Format(time.RFC3339),
		st.RetryCount, st.LastError)
	if err != nil {
		return fmt.Errorf("writing stage state: %w", err)
	}
	return nil
}
