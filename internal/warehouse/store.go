// Package warehouse persists the pipeline's tables: rebuilt staging and
// marts, append-only dimensions and facts, and the run log. Two backends are
// provided: embedded SQLite and Postgres.
package warehouse

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/scd"
)

// Store is the persisted-table boundary the pipeline builds against:
// full-table replace for staging and marts, close-and-insert for dimensions,
// keyed upsert for facts, plus the read queries the presentation boundary
// needs.
type Store interface {
	// Run log
	StartRun(ctx context.Context, run model.RunContext) error
	FinishRun(ctx context.Context, report *model.RunReport) error
	ListRuns(ctx context.Context, limit int) ([]model.RunReport, error)

	// Staging (truncate and rebuild per source)
	ReplaceStaging(ctx context.Context, source string, records []model.StagedRecord) (int64, error)

	// Dimensions (append-only version log)
	CurrentDimensions(ctx context.Context, dim string) (map[string]model.DimensionRow, error)
	DimensionVersions(ctx context.Context, dim, businessKey string) ([]model.DimensionRow, error)
	ApplyChangeset(ctx context.Context, dim string, cs scd.Changeset, processedAt time.Time) (closed, inserted int64, err error)

	// Static source registry (insert once, keyed by name)
	SeedDataSources(ctx context.Context, entries []config.RegistryEntry) error
	DataSources(ctx context.Context) (map[string]model.DataSource, error)

	// Facts (append/merge by natural key)
	UpsertFacts(ctx context.Context, rows []model.FactRow) (int64, error)

	// Marts (full rebuild)
	ReplaceTrends(ctx context.Context, rows []model.TrendRow) (int64, error)
	ReplaceRankings(ctx context.Context, rows []model.RankingRow) (int64, error)
	Rankings(ctx context.Context, limit int) ([]model.RankingRow, error)

	// Presentation boundary, keyed by business identifier
	MarketSummary(ctx context.Context, businessKey string) (*model.MarketSummary, error)
	TrendSeries(ctx context.Context, businessKey string, months int) ([]model.TrendRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New creates a Store for the configured driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	default:
		return nil, eris.Errorf("warehouse: unknown store driver %q", cfg.Driver)
	}
}
