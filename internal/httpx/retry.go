// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpx

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// RetryBaseDelay controls the jittered delay before the single retry.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

// retryable reports whether a status code warrants one more attempt.
// 4xx responses are terminal: retrying a denial changes nothing.
func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// DoWithRetry executes req and retries at most once on transport errors
// and retryable status codes, sleeping RetryBaseDelay..2*RetryBaseDelay
// first. The failed response body is drained and closed before the retry
// so the pooled connection can be reused. Context cancellation during the
// wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req.Clone(ctx))
	if err == nil && !retryable(resp.StatusCode) {
		return resp, nil
	}
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	jitter := RetryBaseDelay + time.Duration(rand.Int63n(int64(RetryBaseDelay)+1))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(jitter):
	}

	return client.Do(req.Clone(ctx))
}
