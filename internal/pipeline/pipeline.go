// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline coordinates the enrichment ladder. Each dataset climbs
// metadata, citations, urls, pdfs, parse in order; every stage persists its
// results before the completeness level advances, so an interrupted run
// resumes exactly where it stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/geo-fulltext/internal/cache"
	"github.com/pdiddy/geo-fulltext/internal/discover"
	"github.com/pdiddy/geo-fulltext/internal/download"
	"github.com/pdiddy/geo-fulltext/internal/fulltext"
	"github.com/pdiddy/geo-fulltext/internal/geo"
	"github.com/pdiddy/geo-fulltext/internal/logx"
	"github.com/pdiddy/geo-fulltext/internal/parse"
	"github.com/pdiddy/geo-fulltext/internal/registry"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Stage names as persisted in the enrichment_state table.
const (
	StageMetadata  = "metadata"
	StageCitations = "citations"
	StageURLs      = "urls"
	StagePDFs      = "pdfs"
	StageParse     = "parse"
)

// pubFanout bounds concurrent per-publication work inside one dataset.
// The download manager's semaphore bounds the process-wide total.
const pubFanout = 10

// Deferral sentinels, tested with errors.Is by callers deciding whether a
// dataset is worth re-submitting.
var (
	ErrBackoffDeferred = errors.New("stage deferred by backoff")
	ErrMaxRetries      = errors.New("stage poisoned after max retries")
)

// MetadataFetcher is the P0 surface: GEO metadata plus the SOFT backfill.
type MetadataFetcher interface {
	FetchDataset(ctx context.Context, geoID string) (*types.GEODataset, error)
	FetchSOFT(ctx context.Context, geoID, softDir string) (string, error)
}

// Discoverer is the P1 surface.
type Discoverer interface {
	Discover(ctx context.Context, ds *types.GEODataset) (*discover.Result, error)
}

// URLCollector is the P2 surface.
type URLCollector interface {
	CollectURLs(ctx context.Context, pub *types.Publication) *fulltext.Result
	FilterBlocked(ctx context.Context, pub *types.Publication, urls []types.URLCandidate) []types.URLCandidate
}

// Downloader is the P3 surface.
type Downloader interface {
	Download(ctx context.Context, geoID string, rel types.Relationship, pub *types.Publication, candidates []types.URLCandidate) *types.DownloadResult
}

// Extractor is the P4 surface.
type Extractor interface {
	Extract(path string) (*types.ParsedContent, error)
}

var (
	_ MetadataFetcher = (*geo.Client)(nil)
	_ Discoverer      = (*discover.Manager)(nil)
	_ URLCollector    = (*fulltext.Manager)(nil)
	_ Downloader      = (*download.Manager)(nil)
	_ Extractor       = (*parse.Parser)(nil)
)

// Deps are the stage implementations the coordinator drives.
type Deps struct {
	Metadata  MetadataFetcher
	Discovery Discoverer
	Fulltext  URLCollector
	Download  Downloader
	Parse     Extractor
}

// Event reports a stage transition to progress subscribers.
type Event struct {
	GeoID  string            `json:"geo_id"`
	Stage  string            `json:"stage"`
	Status types.StageStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// Coordinator walks datasets up the completeness ladder.
type Coordinator struct {
	deps  Deps
	reg   *registry.Registry
	cache *cache.Cache
	cfg   types.Config
	log   logx.Logger

	// OnEvent, when set, is invoked after each stage outcome is persisted.
	OnEvent func(Event)
}

// New builds a coordinator. Zero-valued retry policy falls back to the
// documented defaults.
func New(deps Deps, reg *registry.Registry, c *cache.Cache, cfg types.Config, log logx.Logger) *Coordinator {
	def := types.DefaultConfig().Pipeline
	if cfg.Pipeline.MaxRetries <= 0 {
		cfg.Pipeline.MaxRetries = def.MaxRetries
	}
	if len(cfg.Pipeline.Backoff) == 0 {
		cfg.Pipeline.Backoff = def.Backoff
	}
	if cfg.Pipeline.StageTimeout <= 0 {
		cfg.Pipeline.StageTimeout = def.StageTimeout
	}
	if cfg.Pipeline.DatasetTimeout <= 0 {
		cfg.Pipeline.DatasetTimeout = def.DatasetTimeout
	}
	return &Coordinator{
		deps:  deps,
		reg:   reg,
		cache: c,
		cfg:   cfg,
		log:   log.WithSource("pipeline"),
	}
}

type stageDef struct {
	name  string
	level types.CompletenessLevel
	run   func(ctx context.Context, geoID string) error
}

func (c *Coordinator) ladder(maxPapers int) []stageDef {
	return []stageDef{
		{StageMetadata, types.LevelMetadataOnly, c.runMetadata},
		{StageCitations, types.LevelWithCitations, c.runCitations},
		{StageURLs, types.LevelWithURLs, func(ctx context.Context, geoID string) error {
			return c.runURLs(ctx, geoID, maxPapers)
		}},
		{StagePDFs, types.LevelWithPDFs, func(ctx context.Context, geoID string) error {
			return c.runPDFs(ctx, geoID, maxPapers)
		}},
		{StageParse, types.LevelFullyEnriched, func(ctx context.Context, geoID string) error {
			return c.runParse(ctx, geoID, maxPapers)
		}},
	}
}

// EnrichDataset raises one dataset toward the desired level. maxPapers
// caps the publications carried through the heavy stages; zero means the
// configured default. The returned snapshot always reflects the best
// level actually achieved; a non-nil error alongside it means a stage
// failed or was deferred and the ladder stopped there.
func (c *Coordinator) EnrichDataset(ctx context.Context, seed types.DatasetSeed, desired types.CompletenessLevel, maxPapers int) (*types.DatasetSnapshot, error) {
	if maxPapers <= 0 {
		maxPapers = c.cfg.Pipeline.MaxPapersPerDataset
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Pipeline.DatasetTimeout)
	defer cancel()

	err := c.reg.UpsertDataset(ctx, &types.GEODataset{
		GeoID:     seed.GeoID,
		Title:     seed.Title,
		Summary:   seed.Summary,
		Organism:  seed.Organism,
		PubmedIDs: seed.PubmedIDs,
	})
	if err != nil {
		return nil, err
	}

	var stageErr error
	for _, st := range c.ladder(maxPapers) {
		if st.level > desired {
			break
		}
		level, err := c.reg.GetLevel(ctx, seed.GeoID)
		if err != nil {
			return nil, err
		}
		if level >= st.level {
			continue
		}
		state, err := c.reg.GetStageState(ctx, seed.GeoID, st.name)
		if err != nil {
			return nil, err
		}
		if err := c.deferral(state, time.Now()); err != nil {
			c.log.Skip("stage deferred", logx.F("geo_id", seed.GeoID),
				logx.F("stage", st.name), logx.F("reason", err.Error()))
			stageErr = fmt.Errorf("stage %s: %w", st.name, err)
			break
		}
		if err := c.runStage(ctx, st, seed.GeoID, state); err != nil {
			stageErr = err
			break
		}
	}

	snap, err := c.reg.GetComplete(ctx, seed.GeoID,
		registry.SnapshotOptions{IncludeRejected: c.cfg.Discovery.IncludeRejected})
	if err != nil {
		return nil, err
	}
	if snap.Completeness >= types.LevelWithPDFs {
		if err := c.writeManifest(snap); err != nil {
			c.log.Warn("manifest write failed", logx.F("geo_id", snap.GeoID), logx.F("error", err.Error()))
		}
	}
	return snap, stageErr
}

// deferral reports why a stage must not run now; nil means eligible.
func (c *Coordinator) deferral(st *types.StageState, now time.Time) error {
	switch st.Status {
	case types.StagePoisoned:
		return ErrMaxRetries
	case types.StageFailed:
		if st.RetryCount >= c.cfg.Pipeline.MaxRetries {
			return ErrMaxRetries
		}
		wait := backoffFor(c.cfg.Pipeline.Backoff, st.RetryCount)
		if since := now.Sub(st.LastAttemptAt); since < wait {
			return fmt.Errorf("%w: retry in %s", ErrBackoffDeferred, (wait - since).Round(time.Second))
		}
	}
	return nil
}

// backoffFor returns the deferral after the retry-th failure, clamped to
// the last rung of the ladder.
func backoffFor(ladder []time.Duration, retry int) time.Duration {
	if len(ladder) == 0 {
		return 0
	}
	idx := retry - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}

func (c *Coordinator) runStage(ctx context.Context, st stageDef, geoID string, state *types.StageState) error {
	sctx, cancel := context.WithTimeout(ctx, c.cfg.Pipeline.StageTimeout)
	err := st.run(sctx, geoID)
	cancel()

	state.LastAttemptAt = time.Now().UTC()
	if err != nil {
		state.RetryCount++
		state.Status = types.StageFailed
		if state.RetryCount >= c.cfg.Pipeline.MaxRetries {
			state.Status = types.StagePoisoned
		}
		state.LastError = err.Error()
		if serr := c.reg.SetStageState(ctx, state); serr != nil {
			return serr
		}
		c.log.Fail("stage failed", logx.F("geo_id", geoID), logx.F("stage", st.name),
			logx.F("retries", state.RetryCount), logx.F("error", err.Error()))
		c.notify(Event{GeoID: geoID, Stage: st.name, Status: state.Status, Error: err.Error()})
		return fmt.Errorf("stage %s: %w", st.name, err)
	}

	state.Status = types.StageSucceeded
	state.LastError = ""
	if serr := c.reg.SetStageState(ctx, state); serr != nil {
		return serr
	}
	if serr := c.reg.SetLevel(ctx, geoID, st.level); serr != nil {
		return serr
	}
	c.log.OK("stage complete", logx.F("geo_id", geoID), logx.F("stage", st.name),
		logx.F("level", st.level.String()))
	c.notify(Event{GeoID: geoID, Stage: st.name, Status: types.StageSucceeded})
	return nil
}

func (c *Coordinator) notify(ev Event) {
	if c.OnEvent != nil {
		c.OnEvent(ev)
	}
}

func (c *Coordinator) runMetadata(ctx context.Context, geoID string) error {
	ds, ok := c.cache.GetDataset(ctx, geoID)
	if !ok {
		var err error
		ds, err = c.deps.Metadata.FetchDataset(ctx, geoID)
		if err != nil {
			return err
		}
	}

	// The SOFT backfill fills gaps ESummary leaves; losing it degrades
	// metadata, it does not fail the stage.
	if soft, err := c.deps.Metadata.FetchSOFT(ctx, geoID, c.cache.SoftDir()); err != nil {
		c.log.Warn("soft file unavailable", logx.F("geo_id", geoID), logx.F("error", err.Error()))
	} else if err := geo.BackfillFromSOFT(ds, soft); err != nil {
		c.log.Warn("soft backfill failed", logx.F("geo_id", geoID), logx.F("error", err.Error()))
	}

	if err := c.reg.UpsertDataset(ctx, ds); err != nil {
		return err
	}
	c.cache.PutDataset(ctx, ds)
	return nil
}

func (c *Coordinator) runCitations(ctx context.Context, geoID string) error {
	ds, err := c.reg.GetDataset(ctx, geoID)
	if err != nil {
		return err
	}
	if ds == nil {
		return fmt.Errorf("dataset %s not in registry", geoID)
	}

	res, err := c.deps.Discovery.Discover(ctx, ds)
	if err != nil {
		return err
	}
	// An empty run must fail so the backoff ladder re-queries the sources;
	// recording success would freeze the dataset at with_citations with
	// nothing to carry forward.
	if len(res.Original) == 0 && len(res.Citing) == 0 {
		return fmt.Errorf("no publications discovered for %s", geoID)
	}
	for _, pub := range res.Original {
		if err := c.persistPublication(ctx, geoID, pub); err != nil {
			return err
		}
	}
	for _, pub := range res.Citing {
		if err := c.persistPublication(ctx, geoID, pub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) persistPublication(ctx context.Context, geoID string, pub *types.Publication) error {
	if err := c.reg.UpsertPublication(ctx, pub); err != nil {
		return err
	}
	return c.reg.Link(ctx, geoID, pub.Key(), pub.Relationship, pub.DiscoverySource)
}

func (c *Coordinator) runURLs(ctx context.Context, geoID string, maxPapers int) error {
	pubs, err := c.stagePublications(ctx, geoID, maxPapers)
	if err != nil {
		return err
	}
	for _, sp := range pubs {
		if err := ctx.Err(); err != nil {
			return err
		}
		existing, err := c.reg.GetURLCandidates(ctx, sp.pub.Key())
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		res := c.deps.Fulltext.CollectURLs(ctx, sp.pub)
		if len(res.URLs) == 0 {
			c.log.Skip("no url candidates", logx.F("pub", sp.pub.Key()))
			continue
		}
		if err := c.reg.AddURLCandidates(ctx, sp.pub.Key(), res.URLs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) runPDFs(ctx context.Context, geoID string, maxPapers int) error {
	pubs, err := c.stagePublications(ctx, geoID, maxPapers)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pubFanout)
	for _, sp := range pubs {
		if sp.pdfPath != "" {
			continue
		}
		sp := sp
		g.Go(func() error {
			cands, err := c.reg.GetURLCandidates(gctx, sp.pub.Key())
			if err != nil {
				return err
			}
			cands = c.deps.Fulltext.FilterBlocked(gctx, sp.pub, cands)
			if len(cands) == 0 {
				c.log.Skip("no usable urls", logx.F("pub", sp.pub.Key()))
				return nil
			}
			res := c.deps.Download.Download(gctx, geoID, sp.rel, sp.pub, cands)
			for i := range res.Attempts {
				if err := c.reg.RecordAttempt(gctx, &res.Attempts[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Coordinator) runParse(ctx context.Context, geoID string, maxPapers int) error {
	pubs, err := c.stagePublications(ctx, geoID, maxPapers)
	if err != nil {
		return err
	}
	workers := c.cfg.Parse.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sp := range pubs {
		if sp.pdfPath == "" || sp.parsed {
			continue
		}
		sp := sp
		g.Go(func() error {
			key := sp.pub.Key()
			if _, failReason, err := c.reg.ParseOutcome(gctx, key); err != nil {
				return err
			} else if failReason != "" {
				// Terminal per-publication failure from a previous run.
				return nil
			}

			content, err := c.deps.Parse.Extract(sp.pdfPath)
			if err != nil {
				reason := parse.Reason(err)
				if reason == "" {
					return err
				}
				c.log.Fail("extraction failed", logx.F("pub", key), logx.F("reason", reason))
				return c.reg.SetParseFailure(gctx, key, reason)
			}
			if err := c.reg.SetParsed(gctx, key, content); err != nil {
				return err
			}
			if err := c.cache.PutParsed(gctx, content); err != nil {
				c.log.Warn("parsed cache write failed", logx.F("pub", key), logx.F("error", err.Error()))
			}
			return nil
		})
	}
	return g.Wait()
}

// stagePub is a publication as the url, pdf, and parse stages see it.
type stagePub struct {
	pub     *types.Publication
	rel     types.Relationship
	pdfPath string
	parsed  bool
}

var bandOrder = map[types.QualityBand]int{
	types.BandExcellent:  0,
	types.BandGood:       1,
	types.BandAcceptable: 2,
	types.BandPoor:       4,
	types.BandRejected:   5,
}

func bandRank(b types.QualityBand) int {
	if r, ok := bandOrder[b]; ok {
		return r
	}
	return 3
}

// stagePublications selects the publications carried through the heavy
// stages: originals first, then citing papers by quality band, capped at
// maxPapers.
func (c *Coordinator) stagePublications(ctx context.Context, geoID string, maxPapers int) ([]stagePub, error) {
	snap, err := c.reg.GetComplete(ctx, geoID, registry.SnapshotOptions{})
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("dataset %s not in registry", geoID)
	}

	recs := snap.Publications
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].PaperType != recs[j].PaperType {
			return recs[i].PaperType == types.RelationOriginal
		}
		return bandRank(recs[i].QualityBand) < bandRank(recs[j].QualityBand)
	})
	if maxPapers > 0 && len(recs) > maxPapers {
		recs = recs[:maxPapers]
	}

	pubs := make([]stagePub, 0, len(recs))
	for _, rec := range recs {
		pubs = append(pubs, stagePub{
			pub: &types.Publication{
				PMID:        rec.PMID,
				PMCID:       rec.PMCID,
				DOI:         rec.DOI,
				ArxivID:     rec.ArxivID,
				Title:       rec.Title,
				Journal:     rec.Journal,
				Year:        rec.Year,
				QualityBand: rec.QualityBand,
			},
			rel:     rec.PaperType,
			pdfPath: rec.PDFPath,
			parsed:  rec.Parsed != nil,
		})
	}
	return pubs, nil
}
