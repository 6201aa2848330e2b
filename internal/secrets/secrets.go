// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads API credentials from a directory of plain-text
// files, one secret per file: the filename is the key, the trimmed file
// contents are the value.
//
// Recognized keys: ncbi-api-key, ncbi-contact-email, unpaywall-email,
// semantic-scholar-api-key, core-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load collects every secret under dir. A missing directory is not an
// error; callers get an empty map and run without credentials. Files that
// cannot be read warn on stderr and are skipped, so one bad permission
// bit does not take down the rest.
func Load(dir string) (map[string]string, error) {
	out := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		// Dotfiles (.gitkeep and friends) and subdirectories are not secrets.
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if value, ok := readSecret(filepath.Join(dir, name)); ok {
			out[name] = value
		}
	}
	return out, nil
}

// readSecret returns the trimmed contents of one secret file. Empty files
// and read failures report not-ok.
func readSecret(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", filepath.Base(path), err)
		return "", false
	}
	value := strings.TrimSpace(string(data))
	return value, value != ""
}
