// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/geo-fulltext/internal/cache"
	"github.com/pdiddy/geo-fulltext/internal/discover"
	"github.com/pdiddy/geo-fulltext/internal/download"
	"github.com/pdiddy/geo-fulltext/internal/enrich"
	"github.com/pdiddy/geo-fulltext/internal/fulltext"
	"github.com/pdiddy/geo-fulltext/internal/geo"
	"github.com/pdiddy/geo-fulltext/internal/httpx"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/parse"
	"github.com/pdiddy/geo-fulltext/internal/pipeline"
	"github.com/pdiddy/geo-fulltext/internal/registry"
	"github.com/pdiddy/geo-fulltext/internal/sources"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// stack is the fully wired service graph behind every subcommand.
type stack struct {
	cfg   types.Config
	log   logx.Logger
	reg   *registry.Registry
	cache *cache.Cache
	svc   *enrich.Service
}

// newStack builds the service graph from the effective configuration.
// The returned func releases the registry and redis connections.
func newStack(cmd *cobra.Command) (*stack, func(), error) {
	cfg := loadConfig()
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	log := logx.New(os.Stderr, jsonLogs)

	reg, err := registry.Open(filepath.Join(cfg.StorageRoot, "geo"))
	if err != nil {
		return nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			reg.Close()
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}
	var hot cache.RedisClient
	if redisClient != nil {
		hot = redisClient
	}
	tiers := cache.New(cfg, hot, log)

	client := httpx.NewClient(cfg.HTTPConfig)
	sm := sources.NewManager(cfg, client, log)
	sem := semaphore.NewWeighted(int64(cfg.Download.MaxConcurrent))

	coord := pipeline.New(pipeline.Deps{
		Metadata:  geo.NewClient(client, cfg, log),
		Discovery: discover.NewManager(sm, tiers, cfg.Discovery, log),
		Fulltext:  fulltext.NewManager(sm, cfg.Fulltext, log),
		Download:  download.NewManager(client, cfg, sem, sm.ReportPMCOutcome, log),
		Parse:     parse.New(log),
	}, reg, tiers, cfg, log)

	s := &stack{
		cfg:   cfg,
		log:   log,
		reg:   reg,
		cache: tiers,
		svc:   enrich.New(coord, cfg, log),
	}
	cleanup := func() {
		reg.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return s, cleanup, nil
}
