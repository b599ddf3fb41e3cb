package warehouse

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/db"
	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/scd"
)

// PostgresStore implements Store on a pgx connection pool. Full-table
// rebuilds go through COPY; facts go through the temp-table bulk upsert.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to Postgres and returns a store backed by a pgx pool.
func NewPostgres(ctx context.Context, databaseURL string, poolCfg *config.PoolConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse database url")
	}
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			cfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			cfg.MinConns = poolCfg.MinConns
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	report       JSONB
);

CREATE TABLE IF NOT EXISTS staging (
	source        TEXT NOT NULL,
	business_key  TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	entity_id     TEXT NOT NULL,
	entity_name   TEXT NOT NULL,
	region_type   TEXT NOT NULL,
	state         TEXT,
	county        TEXT,
	metro         TEXT,
	population    BIGINT,
	size_category TEXT,
	period_date   DATE NOT NULL,
	metric_value  DOUBLE PRECISION NOT NULL,
	quality_score INT NOT NULL,
	anomaly_flag  BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at  TIMESTAMPTZ NOT NULL,
	run_id        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dimensions (
	surrogate_key  BIGSERIAL PRIMARY KEY,
	dim            TEXT NOT NULL,
	business_key   TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	attributes     JSONB NOT NULL,
	effective_date TIMESTAMPTZ NOT NULL,
	end_date       TIMESTAMPTZ,
	is_current     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS data_sources (
	source_key        BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	provider          TEXT NOT NULL,
	data_type         TEXT NOT NULL,
	update_cadence    TEXT NOT NULL,
	reliability_score INT NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	time_key       INT NOT NULL,
	location_key   BIGINT NOT NULL,
	source_key     BIGINT NOT NULL,
	business_key   TEXT NOT NULL,
	metric_value   DOUBLE PRECISION NOT NULL,
	yoy_change     DOUBLE PRECISION,
	yoy_pct_change DOUBLE PRECISION,
	mom_change     DOUBLE PRECISION,
	mom_pct_change DOUBLE PRECISION,
	quality_score  INT NOT NULL,
	anomaly_flag   BOOLEAN NOT NULL DEFAULT FALSE,
	run_id         TEXT NOT NULL,
	PRIMARY KEY (time_key, location_key, source_key)
);

CREATE TABLE IF NOT EXISTS mart_trends (
	business_key   TEXT NOT NULL,
	market_name    TEXT NOT NULL,
	state          TEXT,
	source         TEXT NOT NULL,
	period_date    DATE NOT NULL,
	metric_value   DOUBLE PRECISION NOT NULL,
	yoy_pct_change DOUBLE PRECISION,
	mom_pct_change DOUBLE PRECISION,
	temperature    TEXT NOT NULL,
	quality_score  INT NOT NULL
);

CREATE TABLE IF NOT EXISTS mart_rankings (
	business_key   TEXT NOT NULL,
	market_name    TEXT NOT NULL,
	state          TEXT,
	source         TEXT NOT NULL,
	metric_value   DOUBLE PRECISION NOT NULL,
	yoy_pct_change DOUBLE PRECISION,
	growth_rank    INT NOT NULL,
	heat_score     DOUBLE PRECISION NOT NULL,
	temperature    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staging_source ON staging(source);
CREATE INDEX IF NOT EXISTS idx_staging_business_key ON staging(business_key);
CREATE INDEX IF NOT EXISTS idx_dimensions_current ON dimensions(dim, business_key, is_current);
CREATE INDEX IF NOT EXISTS idx_facts_business_key ON facts(business_key);
CREATE INDEX IF NOT EXISTS idx_mart_trends_key ON mart_trends(business_key, period_date);
CREATE INDEX IF NOT EXISTS idx_mart_rankings_rank ON mart_rankings(growth_rank);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, run model.RunContext) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (run_id, status, started_at) VALUES ($1, $2, $3)`,
		run.RunID, string(model.RunStatusRunning), run.ProcessedAt.UTC())
	return eris.Wrap(err, "postgres: start run")
}

func (s *PostgresStore) FinishRun(ctx context.Context, report *model.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run report")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2, report = $3 WHERE run_id = $4`,
		string(report.Status), time.Now().UTC(), payload, report.RunID)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", report.RunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", report.RunID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, status, started_at, completed_at, report
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunReport
	for rows.Next() {
		var (
			r         model.RunReport
			status    string
			completed *time.Time
			report    []byte
		)
		if err := rows.Scan(&r.RunID, &status, &r.StartedAt, &completed, &report); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(report) > 0 {
			if err := json.Unmarshal(report, &r); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal run report %s", r.RunID)
			}
		}
		r.Status = model.RunStatus(status)
		r.CompletedAt = completed
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

var stagingColumns = []string{
	"source", "business_key", "content_hash", "entity_id", "entity_name",
	"region_type", "state", "county", "metro", "population", "size_category",
	"period_date", "metric_value", "quality_score", "anomaly_flag",
	"processed_at", "run_id",
}

func (s *PostgresStore) ReplaceStaging(ctx context.Context, source string, records []model.StagedRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin staging tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM staging WHERE source = $1`, source); err != nil {
		return 0, eris.Wrapf(err, "postgres: truncate staging %s", source)
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.Source, r.BusinessKey, r.ContentHash, r.EntityID, r.EntityName,
			r.RegionType, r.State, r.County, r.Metro, r.Population, r.SizeCategory,
			r.PeriodDate.UTC(), r.MetricValue, r.QualityScore, r.AnomalyFlag,
			r.ProcessedAt.UTC(), r.RunID,
		})
	}

	n, err := db.CopyFrom(ctx, tx, "staging", stagingColumns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit staging")
	}
	return n, nil
}

func (s *PostgresStore) CurrentDimensions(ctx context.Context, dim string) (map[string]model.DimensionRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT surrogate_key, business_key, content_hash, attributes, effective_date, end_date, is_current
		 FROM dimensions WHERE dim = $1 AND is_current`, dim)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query current %s", dim)
	}
	defer rows.Close()

	out := make(map[string]model.DimensionRow)
	for rows.Next() {
		row, err := scanPgDimensionRow(rows)
		if err != nil {
			return nil, err
		}
		out[row.BusinessKey] = row
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate current %s", dim)
}

func (s *PostgresStore) DimensionVersions(ctx context.Context, dim, businessKey string) ([]model.DimensionRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT surrogate_key, business_key, content_hash, attributes, effective_date, end_date, is_current
		 FROM dimensions WHERE dim = $1 AND business_key = $2 ORDER BY effective_date, surrogate_key`,
		dim, businessKey)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query versions %s/%s", dim, businessKey)
	}
	defer rows.Close()

	var out []model.DimensionRow
	for rows.Next() {
		row, err := scanPgDimensionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate versions %s/%s", dim, businessKey)
}

func (s *PostgresStore) ApplyChangeset(ctx context.Context, dim string, cs scd.Changeset, processedAt time.Time) (int64, int64, error) {
	if cs.Empty() {
		return 0, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: begin dimension tx")
	}
	defer tx.Rollback(ctx)

	var closed int64
	if len(cs.CloseKeys) > 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE dimensions SET end_date = $1, is_current = FALSE
			 WHERE surrogate_key = ANY($2) AND is_current`,
			processedAt.UTC(), cs.CloseKeys)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "postgres: close dimension versions %s", dim)
		}
		closed = tag.RowsAffected()
	}

	for _, ins := range cs.Inserts {
		attrs, err := json.Marshal(ins.Attributes)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "postgres: marshal attributes %s", ins.BusinessKey)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO dimensions (dim, business_key, content_hash, attributes, effective_date, end_date, is_current)
			 VALUES ($1, $2, $3, $4, $5, NULL, TRUE)`,
			dim, ins.BusinessKey, ins.ContentHash, attrs, ins.EffectiveDate.UTC())
		if err != nil {
			return 0, 0, eris.Wrapf(err, "postgres: insert dimension version %s", ins.BusinessKey)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, eris.Wrap(err, "postgres: commit dimension changeset")
	}
	return closed, int64(len(cs.Inserts)), nil
}

func (s *PostgresStore) SeedDataSources(ctx context.Context, entries []config.RegistryEntry) error {
	for _, e := range entries {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO data_sources (name, provider, data_type, update_cadence, reliability_score)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name) DO NOTHING`,
			e.Name, e.Provider, e.DataType, e.UpdateCadence, e.ReliabilityScore)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed data source %s", e.Name)
		}
	}
	return nil
}

func (s *PostgresStore) DataSources(ctx context.Context) (map[string]model.DataSource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_key, name, provider, data_type, update_cadence, reliability_score FROM data_sources`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query data sources")
	}
	defer rows.Close()

	out := make(map[string]model.DataSource)
	for rows.Next() {
		var ds model.DataSource
		if err := rows.Scan(&ds.SourceKey, &ds.Name, &ds.Provider, &ds.DataType, &ds.UpdateCadence, &ds.ReliabilityScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan data source")
		}
		out[ds.Name] = ds
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate data sources")
}

var factColumns = []string{
	"time_key", "location_key", "source_key", "business_key", "metric_value",
	"yoy_change", "yoy_pct_change", "mom_change", "mom_pct_change",
	"quality_score", "anomaly_flag", "run_id",
}

func (s *PostgresStore) UpsertFacts(ctx context.Context, facts []model.FactRow) (int64, error) {
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{
			f.TimeKey, f.LocationKey, f.SourceKey, f.BusinessKey, f.MetricValue,
			f.YoYChange, f.YoYPctChange, f.MoMChange, f.MoMPctChange,
			f.QualityScore, f.AnomalyFlag, f.RunID,
		})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "facts",
		Columns:      factColumns,
		ConflictKeys: []string{"time_key", "location_key", "source_key"},
	}, rows)
}

var trendColumns = []string{
	"business_key", "market_name", "state", "source", "period_date",
	"metric_value", "yoy_pct_change", "mom_pct_change", "temperature", "quality_score",
}

func (s *PostgresStore) ReplaceTrends(ctx context.Context, trends []model.TrendRow) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin trends tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE mart_trends`); err != nil {
		return 0, eris.Wrap(err, "postgres: truncate mart_trends")
	}

	rows := make([][]any, 0, len(trends))
	for _, t := range trends {
		rows = append(rows, []any{
			t.BusinessKey, t.MarketName, t.State, t.Source, t.PeriodDate.UTC(),
			t.MetricValue, t.YoYPctChange, t.MoMPctChange, t.Temperature, t.QualityScore,
		})
	}

	n, err := db.CopyFrom(ctx, tx, "mart_trends", trendColumns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit trends")
	}
	return n, nil
}

var rankingColumns = []string{
	"business_key", "market_name", "state", "source",
	"metric_value", "yoy_pct_change", "growth_rank", "heat_score", "temperature",
}

func (s *PostgresStore) ReplaceRankings(ctx context.Context, rankings []model.RankingRow) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin rankings tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE mart_rankings`); err != nil {
		return 0, eris.Wrap(err, "postgres: truncate mart_rankings")
	}

	rows := make([][]any, 0, len(rankings))
	for _, r := range rankings {
		rows = append(rows, []any{
			r.BusinessKey, r.MarketName, r.State, r.Source,
			r.MetricValue, r.YoYPctChange, r.GrowthRank, r.HeatScore, r.Temperature,
		})
	}

	n, err := db.CopyFrom(ctx, tx, "mart_rankings", rankingColumns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit rankings")
	}
	return n, nil
}

func (s *PostgresStore) Rankings(ctx context.Context, limit int) ([]model.RankingRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT business_key, market_name, state, source, metric_value,
			yoy_pct_change, growth_rank, heat_score, temperature
		 FROM mart_rankings ORDER BY growth_rank LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query rankings")
	}
	defer rows.Close()

	var out []model.RankingRow
	for rows.Next() {
		var r model.RankingRow
		if err := rows.Scan(&r.BusinessKey, &r.MarketName, &r.State, &r.Source,
			&r.MetricValue, &r.YoYPctChange, &r.GrowthRank, &r.HeatScore, &r.Temperature); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ranking")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rankings")
}

func (s *PostgresStore) MarketSummary(ctx context.Context, businessKey string) (*model.MarketSummary, error) {
	var sum model.MarketSummary
	err := s.pool.QueryRow(ctx,
		`SELECT business_key, market_name, state, source, period_date,
			metric_value, yoy_pct_change, mom_pct_change, temperature
		 FROM mart_trends WHERE business_key = $1
		 ORDER BY period_date DESC LIMIT 1`, businessKey).
		Scan(&sum.BusinessKey, &sum.MarketName, &sum.State, &sum.Source, &sum.PeriodDate,
			&sum.MetricValue, &sum.YoYPctChange, &sum.MoMPctChange, &sum.Temperature)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query market summary %s", businessKey)
	}

	var attrs map[string]any
	err = s.pool.QueryRow(ctx,
		`SELECT attributes FROM dimensions WHERE business_key = $1 AND is_current LIMIT 1`,
		businessKey).Scan(&attrs)
	if err != nil && err != pgx.ErrNoRows {
		return nil, eris.Wrapf(err, "postgres: query dimension attributes %s", businessKey)
	}
	if v, ok := attrs["metro"].(string); ok {
		sum.Metro = v
	}
	if v, ok := attrs["size_category"].(string); ok {
		sum.SizeCategory = v
	}
	if v, ok := attrs["population"].(float64); ok {
		p := int64(v)
		sum.Population = &p
	}
	return &sum, nil
}

func (s *PostgresStore) TrendSeries(ctx context.Context, businessKey string, months int) ([]model.TrendRow, error) {
	if months <= 0 {
		months = 12
	}
	rows, err := s.pool.Query(ctx,
		`SELECT business_key, market_name, state, source, period_date,
			metric_value, yoy_pct_change, mom_pct_change, temperature, quality_score
		 FROM mart_trends WHERE business_key = $1
		 ORDER BY period_date DESC LIMIT $2`, businessKey, months)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query trend series %s", businessKey)
	}
	defer rows.Close()

	var out []model.TrendRow
	for rows.Next() {
		var t model.TrendRow
		if err := rows.Scan(&t.BusinessKey, &t.MarketName, &t.State, &t.Source, &t.PeriodDate,
			&t.MetricValue, &t.YoYPctChange, &t.MoMPctChange, &t.Temperature, &t.QualityScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trend")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate trend series %s", businessKey)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanPgDimensionRow(rows pgx.Rows) (model.DimensionRow, error) {
	var (
		row   model.DimensionRow
		attrs []byte
	)
	if err := rows.Scan(&row.SurrogateKey, &row.BusinessKey, &row.ContentHash,
		&attrs, &row.EffectiveDate, &row.EndDate, &row.IsCurrent); err != nil {
		return row, eris.Wrap(err, "postgres: scan dimension row")
	}
	if err := json.Unmarshal(attrs, &row.Attributes); err != nil {
		return row, eris.Wrapf(err, "postgres: unmarshal attributes %s", row.BusinessKey)
	}
	return row, nil
}
