// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Warm is the authoritative on-disk tier. Parsed content lives gzipped
// under its content hash; PDFs live under the download manager's
// content-addressed layout. No TTL; expiry is operational.
type Warm struct {
	root string
}

// NewWarm roots the warm tier at the storage directory.
func NewWarm(root string) *Warm {
	return &Warm{root: root}
}

func (w *Warm) parsedPath(sha string) string {
	return filepath.Join(w.root, "parsed", sha+".json.gz")
}

// PutParsed persists parsed content under its hash. Writes go through a
// temp file so a crash never leaves a torn record.
func (w *Warm) PutParsed(content *types.ParsedContent) error {
	if content.ContentSHA256 == "" {
		return fmt.Errorf("cache: parsed content has no hash")
	}
	dir := filepath.Dir(w.parsedPath(content.ContentSHA256))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating parsed dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".parsed-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	gz := gzip.NewWriter(tmp)
	encErr := json.NewEncoder(gz).Encode(content)
	gzErr := gz.Close()
	closeErr := tmp.Close()
	if encErr != nil || gzErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: writing parsed content: enc=%v gz=%v close=%v", encErr, gzErr, closeErr)
	}
	if err := os.Rename(tmpPath, w.parsedPath(content.ContentSHA256)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: renaming parsed content: %w", err)
	}
	return nil
}

// GetParsed loads parsed content by hash. A missing record returns
// (nil, nil); corruption is an error.
func (w *Warm) GetParsed(sha string) (*types.ParsedContent, error) {
	f, err := os.Open(w.parsedPath(sha))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: opening parsed content: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("cache: reading parsed gzip: %w", err)
	}
	defer gz.Close()

	var content types.ParsedContent
	if err := json.NewDecoder(gz).Decode(&content); err != nil {
		return nil, fmt.Errorf("cache: decoding parsed content: %w", err)
	}
	return &content, nil
}

// ParsedStats walks the parsed store and returns entry count and bytes.
func (w *Warm) ParsedStats() (entries int, bytes int64) {
	filepath.Walk(filepath.Join(w.root, "parsed"), func(_ string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		entries++
		bytes += info.Size()
		return nil
	})
	return entries, bytes
}

// Writable probes that the warm root accepts writes.
func (w *Warm) Writable() bool {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return false
	}
	probe, err := os.CreateTemp(w.root, ".probe-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}
