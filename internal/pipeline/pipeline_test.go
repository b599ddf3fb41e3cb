package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/staging"
	"github.com/sells-group/rent-signals/internal/warehouse"
)

type fakeSource struct {
	name string
	obs  []model.RawObservation
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Observations(ctx context.Context) ([]model.RawObservation, error) {
	return f.obs, f.err
}

func testConfig() *config.Config {
	anomaly := config.AnomalyConfig{
		Method:  "zscore",
		ZScoreK: 3,
		Window:  5,
		Scope:   "global",
	}
	rules := config.SourceConfig{
		MinDate:  "2017-01-01",
		MaxDate:  "2030-12-31",
		MinValue: 100,
		MaxValue: 10000,
		Anomaly:  anomaly,
	}
	return &config.Config{
		Sources:  config.SourcesConfig{AptList: rules, ZORI: rules, FRED: rules},
		Registry: config.DefaultRegistry(),
		Marts:    config.MartsConfig{HotThreshold: 5.0, CoolThreshold: 0.0, MaxMarkets: 1000},
	}
}

func testStore(t *testing.T) warehouse.Store {
	t.Helper()
	store, err := warehouse.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// monthlyObs yields one observation per month starting January 2023, with
// the metric advancing by step each month.
func monthlyObs(entityID, name string, months int, start, step float64, population int64) []model.RawObservation {
	pop := population
	out := make([]model.RawObservation, 0, months)
	for i := 0; i < months; i++ {
		v := start + float64(i)*step
		out = append(out, model.RawObservation{
			Source:      "aptlist",
			EntityID:    entityID,
			EntityName:  name,
			RegionType:  "City",
			State:       "Florida",
			County:      "Hillsborough County",
			Metro:       "Tampa, FL",
			Population:  &pop,
			PeriodDate:  time.Date(2023, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			MetricValue: &v,
		})
	}
	return out
}

func TestRun_Complete(t *testing.T) {
	store := testStore(t)
	p, err := New(testConfig(), store)
	require.NoError(t, err)
	src := &fakeSource{name: "aptlist", obs: monthlyObs("12345", "Tampa", 13, 1800, 10, 403364)}
	p.WithSources(src)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, model.RunStatusComplete, report.Status)
	assert.NotEmpty(t, report.RunID)
	require.NotNil(t, report.CompletedAt)

	stages := make(map[string]model.StageReport, len(report.Stages))
	for _, s := range report.Stages {
		stages[s.Stage] = s
	}
	require.Contains(t, stages, "staging/aptlist")
	require.Contains(t, stages, "dimensions")
	require.Contains(t, stages, "facts")
	require.Contains(t, stages, "marts")
	assert.Equal(t, int64(13), stages["staging/aptlist"].RowsWritten)
	assert.Equal(t, int64(1), stages["dimensions"].RowsWritten)
	assert.Equal(t, int64(13), stages["facts"].RowsWritten)

	ctx := context.Background()
	key := staging.BusinessKey(src.obs[0])
	summary, err := store.MarketSummary(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "Tampa", summary.MarketName)

	series, err := store.TrendSeries(ctx, key, 6)
	require.NoError(t, err)
	require.Len(t, series, 6)
	assert.True(t, series[0].PeriodDate.Before(series[5].PeriodDate))

	rankings, err := store.Rankings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rankings, 1)

	runs, err := store.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestRun_RerunWithoutChangesAddsNoVersions(t *testing.T) {
	store := testStore(t)
	p, err := New(testConfig(), store)
	require.NoError(t, err)
	src := &fakeSource{name: "aptlist", obs: monthlyObs("12345", "Tampa", 13, 1800, 10, 403364)}
	p.WithSources(src)

	ctx := context.Background()
	_, err = p.Run(ctx)
	require.NoError(t, err)
	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, report.Status)

	key := staging.BusinessKey(src.obs[0])
	versions, err := store.DimensionVersions(ctx, model.DimLocation, key)
	require.NoError(t, err)
	require.Len(t, versions, 1, "identical attributes never grow the version log")
	assert.True(t, versions[0].IsCurrent)
}

func TestRun_AttributeChangeOpensNewVersion(t *testing.T) {
	store := testStore(t)
	p, err := New(testConfig(), store)
	require.NoError(t, err)
	src := &fakeSource{name: "aptlist", obs: monthlyObs("12345", "Tampa", 13, 1800, 10, 403364)}
	p.WithSources(src)

	ctx := context.Background()
	_, err = p.Run(ctx)
	require.NoError(t, err)

	src.obs = monthlyObs("12345", "Tampa", 13, 1800, 10, 420000)
	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, report.Status)

	key := staging.BusinessKey(src.obs[0])
	versions, err := store.DimensionVersions(ctx, model.DimLocation, key)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	var current, closed int
	for _, v := range versions {
		if v.IsCurrent {
			current++
			assert.Nil(t, v.EndDate)
			assert.Equal(t, float64(420000), v.Attributes["population"])
		} else {
			closed++
			require.NotNil(t, v.EndDate)
		}
	}
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, closed)
}

func TestRun_OutOfRangeValueWarnsButCompletes(t *testing.T) {
	store := testStore(t)
	p, err := New(testConfig(), store)
	require.NoError(t, err)
	obs := monthlyObs("12345", "Tampa", 13, 1800, 10, 403364)
	obs = append(obs, monthlyObs("99999", "Nowhere", 1, 50, 0, 1200)...)
	p.WithSources(&fakeSource{name: "aptlist", obs: obs})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWarning, report.Status)

	warnings := report.Warnings()
	require.NotEmpty(t, warnings)
	names := make([]string, 0, len(warnings))
	for _, w := range warnings {
		names = append(names, w.Assertion)
	}
	assert.Contains(t, names, "aptlist_rent_in_bounds")
	assert.Empty(t, report.HaltedStage)
}

func TestRun_HaltsOnDuplicatePeriod(t *testing.T) {
	store := testStore(t)
	p, err := New(testConfig(), store)
	require.NoError(t, err)
	obs := monthlyObs("12345", "Tampa", 13, 1800, 10, 403364)
	obs = append(obs, obs[0])
	p.WithSources(&fakeSource{name: "aptlist", obs: obs})

	report, err := p.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, model.RunStatusHalted, report.Status)
	assert.Equal(t, "staging/aptlist", report.HaltedStage)
	assert.Equal(t, "aptlist_entity_period_unique", report.HaltedCheck)

	var halted *ErrHalted
	require.True(t, eris.As(err, &halted))
	assert.Equal(t, "aptlist_entity_period_unique", halted.Check.Assertion)

	runs, err := store.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusHalted, runs[0].Status)
}

func TestRun_SourceReadFailureHalts(t *testing.T) {
	store := testStore(t)
	p, err := New(testConfig(), store)
	require.NoError(t, err)
	p.WithSources(&fakeSource{name: "aptlist", err: eris.New("extract unreadable")})

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.RunStatusHalted, report.Status)
	assert.Contains(t, err.Error(), "pipeline: read source aptlist")
	assert.Empty(t, report.HaltedCheck, "a read failure is not a quality halt")
}
