// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// AttemptStatus is the terminal outcome of a single download attempt.
type AttemptStatus string

const (
	AttemptSuccess   AttemptStatus = "success"
	AttemptFailed    AttemptStatus = "failed"
	AttemptSkipped   AttemptStatus = "skipped"
	AttemptPaywalled AttemptStatus = "paywalled"
)

// DownloadAttempt records one waterfall step. Rows are append-only; at most
// one success exists per publication, and its FilePath and SHA256 are
// immutable once written.
type DownloadAttempt struct {
	PubKey    string        `json:"pub_key"`
	URL       string        `json:"url"`
	Source    string        `json:"source"`
	Status    AttemptStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	FilePath  string        `json:"file_path,omitempty"`
	FileSize  int64         `json:"file_size,omitempty"`
	SHA256    string        `json:"sha256,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// DownloadResult summarizes a completed waterfall for one publication.
type DownloadResult struct {
	Success  bool              `json:"success"`
	FilePath string            `json:"file_path,omitempty"`
	SHA256   string            `json:"sha256,omitempty"`
	Source   string            `json:"source,omitempty"`
	Attempts []DownloadAttempt `json:"attempts"`
}
