// Package pipeline orchestrates one warehouse run: staging per source,
// dimension maintenance, fact building, mart rebuild, with the quality gate
// evaluated after every stage that produces persisted state.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/dims"
	"github.com/sells-group/rent-signals/internal/facts"
	"github.com/sells-group/rent-signals/internal/marts"
	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/quality"
	"github.com/sells-group/rent-signals/internal/source"
	"github.com/sells-group/rent-signals/internal/staging"
	"github.com/sells-group/rent-signals/internal/warehouse"
)

// Pipeline runs the full transformation flow against one store.
type Pipeline struct {
	cfg        *config.Config
	store      warehouse.Store
	sources    []source.Source
	assertions []quality.Assertion
}

// New builds a pipeline with the configured sources and assertion suite.
func New(cfg *config.Config, store warehouse.Store) (*Pipeline, error) {
	assertions, err := quality.LoadSuite(cfg.Quality.SuitePath)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load assertion suite")
	}
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		sources:    source.All(cfg),
		assertions: assertions,
	}, nil
}

// WithSources overrides the source adapters. Used by tests to feed synthetic
// observations through the full flow.
func (p *Pipeline) WithSources(srcs ...source.Source) *Pipeline {
	p.sources = srcs
	return p
}

// ErrHalted wraps the assertion failure that stopped a run. The report
// carries the stage and check attribution.
type ErrHalted struct {
	Check model.CheckResult
}

func (e *ErrHalted) Error() string {
	return quality.HaltError(&e.Check).Error()
}

// Run executes one full pipeline pass. The returned report is non-nil even
// when the run halts; Status distinguishes clean completion, completion with
// warnings, and a halted run.
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	run := model.RunContext{
		RunID:       uuid.New().String(),
		ProcessedAt: time.Now().UTC(),
	}
	report := &model.RunReport{
		RunID:     run.RunID,
		Status:    model.RunStatusRunning,
		StartedAt: run.ProcessedAt,
	}

	if err := p.store.StartRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: record run start")
	}

	zap.L().Info("pipeline: run started", zap.String("run_id", run.RunID))

	staged, err := p.runStages(ctx, run, report)
	report.Stages = staged

	now := time.Now().UTC()
	report.CompletedAt = &now
	switch {
	case err != nil:
		report.Status = model.RunStatusHalted
		report.Error = err.Error()
	case len(report.Warnings()) > 0:
		report.Status = model.RunStatusWarning
	default:
		report.Status = model.RunStatusComplete
	}

	if ferr := p.store.FinishRun(ctx, report); ferr != nil {
		zap.L().Error("pipeline: record run finish", zap.Error(ferr))
		if err == nil {
			err = ferr
		}
	}

	zap.L().Info("pipeline: run finished",
		zap.String("run_id", run.RunID),
		zap.String("status", string(report.Status)),
		zap.Int("warnings", len(report.Warnings())),
	)
	return report, err
}

func (p *Pipeline) runStages(ctx context.Context, run model.RunContext, report *model.RunReport) ([]model.StageReport, error) {
	var stages []model.StageReport

	staged, stagingReports, err := p.stageSources(ctx, run)
	stages = append(stages, stagingReports...)
	if err != nil {
		p.attributeHalt(report, stagingReports, err)
		return stages, err
	}

	dimStage, err := p.buildDimensions(ctx, run, staged)
	stages = append(stages, dimStage)
	if err != nil {
		p.attributeHalt(report, []model.StageReport{dimStage}, err)
		return stages, err
	}

	factRows, factStage, err := p.buildFacts(ctx, run, staged)
	stages = append(stages, factStage)
	if err != nil {
		p.attributeHalt(report, []model.StageReport{factStage}, err)
		return stages, err
	}

	martStage, err := p.buildMarts(ctx, factRows)
	stages = append(stages, martStage)
	if err != nil {
		p.attributeHalt(report, []model.StageReport{martStage}, err)
	}
	return stages, err
}

// stageSources cleans and persists every source concurrently. Sources are
// independent partitions of the staging table, so their gates and writes can
// overlap; the first halting failure cancels the rest.
func (p *Pipeline) stageSources(ctx context.Context, run model.RunContext) ([]model.StagedRecord, []model.StageReport, error) {
	var (
		mu      sync.Mutex
		staged  []model.StagedRecord
		reports []model.StageReport
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range p.sources {
		g.Go(func() error {
			records, stage, err := p.stageOne(gctx, run, src)
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, stage)
			if err != nil {
				return err
			}
			staged = append(staged, records...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, reports, err
	}
	return staged, reports, nil
}

func (p *Pipeline) stageOne(ctx context.Context, run model.RunContext, src source.Source) ([]model.StagedRecord, model.StageReport, error) {
	name := src.Name()
	stage := model.StageReport{Stage: "staging/" + name}

	obs, err := src.Observations(ctx)
	if err != nil {
		return nil, stage, eris.Wrapf(err, "pipeline: read source %s", name)
	}

	rules, err := staging.NewRules(name, p.sourceConfig(name))
	if err != nil {
		return nil, stage, err
	}

	records, stats, err := staging.Clean(ctx, rules, obs, run)
	if err != nil {
		return nil, stage, eris.Wrapf(err, "pipeline: clean source %s", name)
	}
	stage.RowsDropped = int64(stats.Filtered())
	stage.Anomalies = int64(stats.Anomalies)

	stage.Checks = quality.Run("stg_"+name, stagingSnapshot(records), p.assertions)
	if halt := quality.Halt(stage.Checks); halt != nil {
		return nil, stage, &ErrHalted{Check: *halt}
	}

	n, err := p.store.ReplaceStaging(ctx, name, records)
	if err != nil {
		return nil, stage, err
	}
	stage.RowsWritten = n

	zap.L().Info("pipeline: staged source",
		zap.String("source", name),
		zap.Int("input", stats.Input),
		zap.Int64("written", n),
		zap.Int64("dropped", stage.RowsDropped),
		zap.Int64("anomalies", stage.Anomalies),
	)
	return records, stage, nil
}

// buildDimensions updates each dimension serially. Concurrent close+insert
// for one business key is never possible this way, and dimension gates read
// the post-apply store state so the SCD2 current-row invariant is checked on
// what was actually persisted.
func (p *Pipeline) buildDimensions(ctx context.Context, run model.RunContext, staged []model.StagedRecord) (model.StageReport, error) {
	stage := model.StageReport{Stage: "dimensions"}

	if err := p.store.SeedDataSources(ctx, p.cfg.Registry); err != nil {
		return stage, err
	}

	names, byDim := dims.Partition(staged)
	for _, dim := range names {
		res, err := dims.Update(ctx, p.store, dim, dims.Candidates(dim, byDim[dim]), run.ProcessedAt)
		if err != nil {
			return stage, err
		}
		stage.RowsWritten += res.Inserted

		current, err := p.store.CurrentDimensions(ctx, dim)
		if err != nil {
			return stage, err
		}
		checks := quality.Run(dim, dimensionSnapshot(current), p.assertions)
		stage.Checks = append(stage.Checks, checks...)
		if halt := quality.Halt(checks); halt != nil {
			return stage, &ErrHalted{Check: *halt}
		}
	}
	return stage, nil
}

func (p *Pipeline) buildFacts(ctx context.Context, run model.RunContext, staged []model.StagedRecord) ([]model.FactRow, model.StageReport, error) {
	stage := model.StageReport{Stage: "facts"}

	merged := make(map[string]model.DimensionRow)
	for _, dim := range []string{model.DimLocation, model.DimEconomicSeries} {
		current, err := p.store.CurrentDimensions(ctx, dim)
		if err != nil {
			return nil, stage, err
		}
		for k, v := range current {
			merged[k] = v
		}
	}

	sources, err := p.store.DataSources(ctx)
	if err != nil {
		return nil, stage, err
	}
	sourceKeys := make(map[string]int64, len(sources))
	for name, ds := range sources {
		sourceKeys[name] = ds.SourceKey
	}

	rows, err := facts.Build(staged, merged, sourceKeys, run)
	if err != nil {
		return nil, stage, err
	}

	stage.Checks = quality.Run("fact_rent", factSnapshot(rows), p.assertions)
	if halt := quality.Halt(stage.Checks); halt != nil {
		return nil, stage, &ErrHalted{Check: *halt}
	}

	n, err := p.store.UpsertFacts(ctx, rows)
	if err != nil {
		return nil, stage, err
	}
	stage.RowsWritten = n

	zap.L().Info("pipeline: built facts", zap.Int64("rows", n))
	return rows, stage, nil
}

func (p *Pipeline) buildMarts(ctx context.Context, factRows []model.FactRow) (model.StageReport, error) {
	stage := model.StageReport{Stage: "marts"}

	locations, err := p.store.CurrentDimensions(ctx, model.DimLocation)
	if err != nil {
		return stage, err
	}
	sources, err := p.store.DataSources(ctx)
	if err != nil {
		return stage, err
	}

	trends, rankings := marts.Build(factRows, locations, sources, p.cfg.Marts)

	stage.Checks = quality.Run("mart_rent_trends", trendSnapshot(trends), p.assertions)
	stage.Checks = append(stage.Checks, quality.Run("mart_market_rankings", rankingSnapshot(rankings), p.assertions)...)
	if halt := quality.Halt(stage.Checks); halt != nil {
		return stage, &ErrHalted{Check: *halt}
	}

	nt, err := p.store.ReplaceTrends(ctx, trends)
	if err != nil {
		return stage, err
	}
	nr, err := p.store.ReplaceRankings(ctx, rankings)
	if err != nil {
		return stage, err
	}
	stage.RowsWritten = nt + nr

	zap.L().Info("pipeline: rebuilt marts",
		zap.Int64("trends", nt),
		zap.Int64("rankings", nr),
	)
	return stage, nil
}

// attributeHalt records which stage and assertion stopped the run.
func (p *Pipeline) attributeHalt(report *model.RunReport, stages []model.StageReport, err error) {
	var halted *ErrHalted
	if !eris.As(err, &halted) {
		return
	}
	for _, s := range stages {
		for _, c := range s.Checks {
			if c.Failed() && c.Assertion == halted.Check.Assertion {
				report.HaltedStage = s.Stage
				report.HaltedCheck = c.Assertion
				return
			}
		}
	}
}

func (p *Pipeline) sourceConfig(name string) config.SourceConfig {
	switch name {
	case "aptlist":
		return p.cfg.Sources.AptList
	case "zori":
		return p.cfg.Sources.ZORI
	case "fred":
		return p.cfg.Sources.FRED
	default:
		return config.SourceConfig{}
	}
}
