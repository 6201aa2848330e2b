// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich is the boundary service. One call takes a batch of
// dataset seeds and a desired completeness level and returns a snapshot
// per dataset, enriching a bounded number of them in parallel.
package enrich

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/pipeline"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Service drives the coordinator for whole requests.
type Service struct {
	coord *pipeline.Coordinator
	cfg   types.Config
	log   logx.Logger

	mu   sync.Mutex
	subs map[int]chan pipeline.Event
	next int
}

// New wires the service onto a coordinator and takes over its event hook.
func New(coord *pipeline.Coordinator, cfg types.Config, log logx.Logger) *Service {
	if cfg.Pipeline.DatasetConcurrency <= 0 {
		cfg.Pipeline.DatasetConcurrency = types.DefaultConfig().Pipeline.DatasetConcurrency
	}
	s := &Service{
		coord: coord,
		cfg:   cfg,
		log:   log.WithSource("enrich"),
		subs:  map[int]chan pipeline.Event{},
	}
	coord.OnEvent = s.broadcast
	return s
}

// Subscribe registers a progress listener. The returned cancel func
// unregisters and closes the channel. Slow listeners lose events rather
// than stall the pipeline.
func (s *Service) Subscribe(buffer int) (<-chan pipeline.Event, func()) {
	ch := make(chan pipeline.Event, buffer)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Service) broadcast(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Enrich processes a request. Response order matches request order no
// matter which dataset finishes first, and a stage failure on one dataset
// never blocks the others; its partial snapshot is returned alongside an
// entry in Errors.
func (s *Service) Enrich(ctx context.Context, req *types.EnrichRequest) (*types.EnrichResponse, error) {
	if len(req.Datasets) == 0 {
		return nil, fmt.Errorf("request names no datasets")
	}
	for _, d := range req.Datasets {
		if d.GeoID == "" {
			return nil, fmt.Errorf("dataset seed missing geo id")
		}
	}

	desired := req.DesiredLevel
	if desired == types.LevelNew {
		var err error
		desired, err = types.ParseLevel(s.cfg.DesiredLevelDefault)
		if err != nil {
			return nil, fmt.Errorf("bad default completeness level: %w", err)
		}
	}

	snaps := make([]*types.DatasetSnapshot, len(req.Datasets))
	stageErrs := make([]error, len(req.Datasets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Pipeline.DatasetConcurrency)
	for i, seed := range req.Datasets {
		i, seed := i, seed
		g.Go(func() error {
			snap, err := s.coord.EnrichDataset(gctx, seed, desired, req.MaxPapersPerDataset)
			if snap == nil {
				// Infrastructure failure, not a stage outcome.
				return fmt.Errorf("enriching %s: %w", seed.GeoID, err)
			}
			snaps[i] = snap
			stageErrs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &types.EnrichResponse{Datasets: make([]types.DatasetSnapshot, len(snaps))}
	for i, snap := range snaps {
		resp.Datasets[i] = *snap
		if stageErrs[i] != nil {
			if resp.Errors == nil {
				resp.Errors = map[string]string{}
			}
			resp.Errors[snap.GeoID] = stageErrs[i].Error()
			s.log.Warn("dataset stopped short of target",
				logx.F("geo_id", snap.GeoID), logx.F("level", snap.Level),
				logx.F("error", stageErrs[i].Error()))
		}
	}
	s.log.OK("request complete", logx.F("datasets", len(resp.Datasets)),
		logx.F("level", desired.String()), logx.F("errors", len(resp.Errors)))
	return resp, nil
}
