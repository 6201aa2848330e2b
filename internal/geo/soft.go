// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package geo

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// geoFTPBase hosts the SOFT family bundles. Declared as a var so tests
// can substitute an httptest server.
var geoFTPBase = "https://ftp.ncbi.nlm.nih.gov/geo/series"

func decodeJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}

// seriesRange returns the FTP shard directory for an accession: GSE52564
// lives under GSE52nnn.
func seriesRange(geoID string) string {
	digits := strings.TrimPrefix(geoID, "GSE")
	if len(digits) <= 3 {
		return "GSEnnn"
	}
	return "GSE" + digits[:len(digits)-3] + "nnn"
}

// FetchSOFT downloads the gzipped SOFT family file into the cold cache at
// softDir/<geo_id>_family.soft.gz, skipping the download when the file is
// already present. It returns the on-disk path.
func (c *Client) FetchSOFT(ctx context.Context, geoID, softDir string) (string, error) {
	dest := filepath.Join(softDir, geoID+"_family.soft.gz")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(softDir, 0o755); err != nil {
		return "", fmt.Errorf("geo: creating soft cache dir: %w", err)
	}

	rawURL := fmt.Sprintf("%s/%s/%s/soft/%s_family.soft.gz", geoFTPBase, seriesRange(geoID), geoID, geoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("geo: creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	resp, err := httpx.DoWithRetry(ctx, c.http, req)
	if err != nil {
		return "", fmt.Errorf("geo: SOFT download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: HTTP %d from %s", resp.StatusCode, rawURL)
	}

	tmp, err := os.CreateTemp(softDir, ".soft-*.tmp")
	if err != nil {
		return "", fmt.Errorf("geo: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("geo: writing SOFT file: copy=%v close=%v", copyErr, closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("geo: renaming SOFT file: %w", err)
	}

	c.log.OK("cached SOFT family file", logx.F("geo_id", geoID), logx.F("path", dest))
	return dest, nil
}

// SOFT header attributes we read during backfill.
var softFields = map[string]func(*types.GEODataset, string){
	"!Series_title": func(ds *types.GEODataset, v string) {
		if ds.Title == "" {
			ds.Title = v
		}
	},
	"!Series_summary": func(ds *types.GEODataset, v string) {
		if ds.Summary == "" {
			ds.Summary = v
		}
	},
	"!Series_platform_id": func(ds *types.GEODataset, v string) {
		if ds.Platform == "" {
			ds.Platform = v
		}
	},
	"!Series_pubmed_id": func(ds *types.GEODataset, v string) {
		for _, existing := range ds.PubmedIDs {
			if existing == v {
				return
			}
		}
		ds.PubmedIDs = append(ds.PubmedIDs, v)
	},
	"!Sample_organism_ch1": func(ds *types.GEODataset, v string) {
		if ds.Organism == "" {
			ds.Organism = v
		}
	},
}

// BackfillFromSOFT fills empty dataset fields from the SOFT family file.
// Sample lines also yield the sample count when ESummary had none.
func BackfillFromSOFT(ds *types.GEODataset, softPath string) error {
	f, err := os.Open(softPath)
	if err != nil {
		return fmt.Errorf("geo: opening SOFT file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("geo: reading SOFT gzip: %w", err)
	}
	defer gz.Close()

	samples := 0
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "^SAMPLE") {
			samples++
			continue
		}
		key, value, found := strings.Cut(line, " = ")
		if !found {
			continue
		}
		if apply, ok := softFields[key]; ok {
			apply(ds, strings.TrimSpace(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("geo: scanning SOFT file: %w", err)
	}
	if ds.SampleCount == 0 {
		ds.SampleCount = samples
	}
	return nil
}
