// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpx provides the shared HTTP transport, retry policy, and
// per-source rate limiting used by every stage that touches the network.
package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// maxRedirects bounds redirect chains. DOI resolvers commonly chain
// through two or three hops; anything past five is a loop.
const maxRedirects = 5

// NewClient builds the pooled client shared across all datasets.
// Compression and keep-alive stay on; redirects are bounded.
func NewClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	transport := &http.Transport{
		MaxConnsPerHost:     32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     60 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}
