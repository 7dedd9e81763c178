// Package pipeline sequences the discovery, enrichment, and resolution
// stages of a run, tracking per-stage status and counters. Stages run in a
// fixed order; work within a stage is dispatched to a bounded pool.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/MellowMango/apartment-search-sub005/internal/adapter"
	"github.com/MellowMango/apartment-search-sub005/internal/enrich"
	"github.com/MellowMango/apartment-search-sub005/internal/fetcher"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
	"github.com/MellowMango/apartment-search-sub005/internal/store"
)

const (
	StageScraping   = "scraping"
	StageEnrichment = "link_enrichment"
	StageConversion = "conversion"
)

const defaultConcurrency = 5

// Options configure a Coordinator.
type Options struct {
	FetchOptions fetcher.Options
	StageTimeout time.Duration // wall-clock bound per stage, 0 = none
	ExcludePaths []string
}

// Coordinator drives pipeline runs. It is safe for concurrent use; each run
// gets its own fetcher so per-host rate-limit state is scoped to the run.
type Coordinator struct {
	registry *adapter.Registry
	matcher  *adapter.PathMatcher
	opts     Options
	store    store.Store // optional
}

// New creates a Coordinator over the given adapter registry.
func New(registry *adapter.Registry, opts Options) *Coordinator {
	if registry == nil {
		registry = adapter.NewRegistry()
	}
	return &Coordinator{
		registry: registry,
		matcher:  adapter.NewPathMatcher(opts.ExcludePaths),
		opts:     opts,
	}
}

// WithStore attaches a persistence backend. Runs and resolved graphs are
// saved at run end; save failures are logged, never fatal.
func (p *Coordinator) WithStore(st store.Store) *Coordinator {
	p.store = st
	return p
}

// Run executes one end-to-end pipeline invocation. A run always returns a
// summary, even on partial failure; only total inability to start (invalid
// config, zero reachable seeds) returns a hard failure alongside it.
func (p *Coordinator) Run(ctx context.Context, cfg model.RunConfig) (*model.PipelineRun, *model.Graph, error) {
	run := &model.PipelineRun{
		ID:        uuid.New().String(),
		Config:    cfg,
		Status:    model.RunStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if len(cfg.SeedURLs) == 0 {
		run.Status = model.RunStatusFailed
		run.Error = "no seed urls configured"
		p.persist(ctx, run, nil)
		return run, nil, eris.New("pipeline: no seed urls configured")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	fetchOpts := p.opts.FetchOptions
	if cfg.PerHostRPS > 0 {
		fetchOpts.PerHostRPS = cfg.PerHostRPS
	}
	if cfg.PerHostBurst > 0 {
		fetchOpts.PerHostBurst = cfg.PerHostBurst
	}
	f := fetcher.New(fetchOpts)

	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: run starting",
		zap.Int("seeds", len(cfg.SeedURLs)),
		zap.Int("concurrency", concurrency),
	)

	// ===== Stage 1: discovery + extraction =====
	run.Status = model.RunStatusScraping
	var candidates []model.RawCandidate

	ok := p.trackStage(ctx, run, StageScraping, func(stageCtx context.Context) (map[string]int, error) {
		var counts map[string]int
		candidates, counts = scrapeStage(stageCtx, cfg.SeedURLs, f, p.registry, p.matcher, concurrency, cfg.MaxCandidates)
		if stageCtx.Err() != nil && ctx.Err() == nil {
			return counts, eris.New("pipeline: scraping stage timed out")
		}
		if counts["pages_fetched"] == 0 {
			return counts, eris.New("pipeline: no discovery pages reachable")
		}
		return counts, nil
	})
	if !ok {
		p.persist(ctx, run, nil)
		return run, nil, eris.Errorf("pipeline: run failed in %s: %s", StageScraping, run.Error)
	}

	// ===== Stage 2: link enrichment =====
	run.Status = model.RunStatusEnriching
	var enriched []model.EnrichedCandidate

	e := enrich.New(f)
	ok = p.trackStage(ctx, run, StageEnrichment, func(stageCtx context.Context) (map[string]int, error) {
		var counts map[string]int
		enriched, counts = enrichStage(stageCtx, candidates, e, concurrency)
		if stageCtx.Err() != nil && ctx.Err() == nil {
			return counts, eris.New("pipeline: enrichment stage timed out")
		}
		return counts, nil
	})
	if !ok {
		p.persist(ctx, run, nil)
		return run, nil, eris.Errorf("pipeline: run failed in %s: %s", StageEnrichment, run.Error)
	}

	// ===== Stage 3: entity resolution =====
	run.Status = model.RunStatusConverting
	var graph *model.Graph

	ok = p.trackStage(ctx, run, StageConversion, func(context.Context) (map[string]int, error) {
		var counts map[string]int
		graph, counts = convertStage(enriched)
		return counts, nil
	})
	if !ok {
		p.persist(ctx, run, nil)
		return run, nil, eris.Errorf("pipeline: run failed in %s: %s", StageConversion, run.Error)
	}

	run.Status = model.RunStatusCompleted
	run.UpdatedAt = time.Now().UTC()
	p.persist(ctx, run, graph)

	log.Info("pipeline: run complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("entities", len(graph.Entities)),
		zap.Int("associations", len(graph.Associations)),
	)

	return run, graph, nil
}

// trackStage runs one stage under the stage timeout, recording its summary.
// Returns false when the stage (and therefore the run) failed.
func (p *Coordinator) trackStage(ctx context.Context, run *model.PipelineRun, name string, fn func(context.Context) (map[string]int, error)) bool {
	stageCtx := ctx
	if p.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.opts.StageTimeout)
		defer cancel()
	}

	summary := model.StageSummary{Name: name, Status: model.StageRunning}
	start := time.Now()
	counts, err := fn(stageCtx)
	summary.Duration = time.Since(start).Milliseconds()
	summary.Counts = counts

	if err != nil {
		summary.Status = model.StageFailed
		summary.Error = err.Error()
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		zap.L().Error("pipeline: stage failed",
			zap.String("run_id", run.ID),
			zap.String("stage", name),
			zap.Int64("duration_ms", summary.Duration),
			zap.Error(err),
		)
	} else {
		summary.Status = model.StageCompleted
		zap.L().Info("pipeline: stage complete",
			zap.String("run_id", run.ID),
			zap.String("stage", name),
			zap.Int64("duration_ms", summary.Duration),
		)
	}

	run.Stages = append(run.Stages, summary)
	run.UpdatedAt = time.Now().UTC()
	return err == nil
}

// persist saves the run summary and graph when a store is attached.
func (p *Coordinator) persist(ctx context.Context, run *model.PipelineRun, graph *model.Graph) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		zap.L().Warn("pipeline: failed to save run", zap.String("run_id", run.ID), zap.Error(err))
	}
	if graph != nil {
		if err := p.store.SaveGraph(ctx, run.ID, graph); err != nil {
			zap.L().Warn("pipeline: failed to save graph", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}
