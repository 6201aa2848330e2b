// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/pdiddy/geo-fulltext/internal/httpx"
)

// get issues a rate-limited GET with the shared retry policy. Terminal
// non-2xx codes come back as the matching error kind with the body closed.
func (b *base) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	if err := b.checkEnabled(); err != nil {
		return nil, err
	}
	if b.limits != nil {
		if err := b.limits.Wait(ctx, b.name); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", b.name, err)
	}
	req.Header.Set("User-Agent", b.ua)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := httpx.DoWithRetry(ctx, b.http, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", b.name, ErrTransient, err)
	}
	if herr := httpError(b.name, resp.StatusCode); herr != nil {
		resp.Body.Close()
		return nil, herr
	}
	return resp, nil
}

// getJSON fetches rawURL and decodes the JSON body into out.
func (b *base) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, err := b.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", b.name, err)
	}
	return nil
}

// getXML fetches rawURL and decodes the XML body into out.
func (b *base) getXML(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, err := b.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", b.name, err)
	}
	return nil
}
