// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"os"
	"path/filepath"
	"time"
)

// CleanupReport summarizes one SOFT-cache sweep.
type CleanupReport struct {
	Scanned    int      `json:"scanned"`
	Removed    int      `json:"removed"`
	FreedBytes int64    `json:"freed_bytes"`
	DryRun     bool     `json:"dry_run"`
	Files      []string `json:"files,omitempty"`
}

// CleanupSOFT deletes cold-tier SOFT bundles older than maxAge. With
// dryRun the report lists what would go without touching anything.
func CleanupSOFT(dir string, maxAge time.Duration, dryRun bool) (*CleanupReport, error) {
	report := &CleanupReport{DryRun: dryRun}
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		report.Scanned++
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		report.Files = append(report.Files, entry.Name())
		report.FreedBytes += info.Size()
		if !dryRun {
			if err := os.Remove(path); err != nil {
				return report, err
			}
		}
		report.Removed++
	}
	return report, nil
}

// SOFTStats returns entry count and bytes in the cold tier.
func SOFTStats(dir string) (entries int, bytes int64) {
	list, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, entry := range list {
		if entry.IsDir() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			entries++
			bytes += info.Size()
		}
	}
	return entries, bytes
}
