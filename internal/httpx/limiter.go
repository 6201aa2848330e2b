// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpx

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters hands out one token bucket per source name. Callers acquire a
// token before every outbound request so batch fan-outs cannot exceed a
// provider's published rate.
type Limiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rates   map[string]rate.Limit
	def     rate.Limit
}

// NewLimiters builds the registry. rates maps source name to requests per
// second; sources without an entry get def.
func NewLimiters(def float64, rates map[string]float64) *Limiters {
	rl := &Limiters{
		buckets: make(map[string]*rate.Limiter),
		rates:   make(map[string]rate.Limit, len(rates)),
		def:     rate.Limit(def),
	}
	for name, r := range rates {
		rl.rates[name] = rate.Limit(r)
	}
	return rl
}

// Wait blocks until source may issue a request or ctx is done.
func (l *Limiters) Wait(ctx context.Context, source string) error {
	return l.bucket(source).Wait(ctx)
}

func (l *Limiters) bucket(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[source]; ok {
		return b
	}
	limit := l.def
	if r, ok := l.rates[source]; ok {
		limit = r
	}
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}
	b := rate.NewLimiter(limit, burst)
	l.buckets[source] = b
	return b
}
