package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/scd"
)

// SQLiteStore implements Store on modernc.org/sqlite. It is the default
// backend for local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	report       TEXT
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
	population    INTEGER,
	size_category TEXT,
	period_date   DATETIME NOT NULL,
	metric_value  REAL NOT NULL,
	quality_score INTEGER NOT NULL,
	anomaly_flag  INTEGER NOT NULL DEFAULT 0,
	processed_at  DATETIME NOT NULL,
	run_id        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dimensions (
	surrogate_key  INTEGER PRIMARY KEY AUTOINCREMENT,
	dim            TEXT NOT NULL,
	business_key   TEXT NOT NULL,
	content_hash   TEXT NOT NULL,
	attributes     TEXT NOT NULL,
	effective_date DATETIME NOT NULL,
	end_date       DATETIME,
	is_current     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS data_sources (
	source_key        INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL UNIQUE,
	provider          TEXT NOT NULL,
	data_type         TEXT NOT NULL,
	update_cadence    TEXT NOT NULL,
	reliability_score INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	time_key       INTEGER NOT NULL,
	location_key   INTEGER NOT NULL,
	source_key     INTEGER NOT NULL,
	business_key   TEXT NOT NULL,
	metric_value   REAL NOT NULL,
	yoy_change     REAL,
	yoy_pct_change REAL,
	mom_change     REAL,
	mom_pct_change REAL,
	quality_score  INTEGER NOT NULL,
	anomaly_flag   INTEGER NOT NULL DEFAULT 0,
	run_id         TEXT NOT NULL,
	PRIMARY KEY (time_key, location_key, source_key)
);

CREATE TABLE IF NOT EXISTS mart_trends (
	business_key   TEXT NOT NULL,
	market_name    TEXT NOT NULL,
	state          TEXT,
	source         TEXT NOT NULL,
	period_date    DATETIME NOT NULL,
	metric_value   REAL NOT NULL,
	yoy_pct_change REAL,
	mom_pct_change REAL,
	temperature    TEXT NOT NULL,
	quality_score  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mart_rankings (
	business_key   TEXT NOT NULL,
	market_name    TEXT NOT NULL,
	state          TEXT,
	source         TEXT NOT NULL,
	metric_value   REAL NOT NULL,
	yoy_pct_change REAL,
	growth_rank    INTEGER NOT NULL,
	heat_score     REAL NOT NULL,
	temperature    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staging_source ON staging(source);
CREATE INDEX IF NOT EXISTS idx_staging_business_key ON staging(business_key);
CREATE INDEX IF NOT EXISTS idx_dimensions_current ON dimensions(dim, business_key, is_current);
CREATE INDEX IF NOT EXISTS idx_facts_business_key ON facts(business_key);
CREATE INDEX IF NOT EXISTS idx_mart_trends_key ON mart_trends(business_key, period_date);
CREATE INDEX IF NOT EXISTS idx_mart_rankings_rank ON mart_rankings(growth_rank);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, run model.RunContext) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, started_at) VALUES (?, ?, ?)`,
		run.RunID, string(model.RunStatusRunning), run.ProcessedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: start run")
}

func (s *SQLiteStore) FinishRun(ctx context.Context, report *model.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run report")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, report = ? WHERE run_id = ?`,
		string(report.Status), time.Now().UTC(), string(payload), report.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", report.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", report.RunID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, status, started_at, completed_at, report
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.RunReport
	for rows.Next() {
		var (
			r         model.RunReport
			status    string
			completed sql.NullTime
			report    sql.NullString
		)
		if err := rows.Scan(&r.RunID, &status, &r.StartedAt, &completed, &report); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if report.Valid && report.String != "" {
			if err := json.Unmarshal([]byte(report.String), &r); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal run report %s", r.RunID)
			}
		}
		r.Status = model.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// ReplaceStaging truncates one source's staged rows and inserts the
// replacement set in a single transaction.
func (s *SQLiteStore) ReplaceStaging(ctx context.Context, source string, records []model.StagedRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin staging tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM staging WHERE source = ?`, source); err != nil {
		return 0, eris.Wrapf(err, "sqlite: truncate staging %s", source)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO staging (source, business_key, content_hash, entity_id, entity_name,
			region_type, state, county, metro, population, size_category,
			period_date, metric_value, quality_score, anomaly_flag, processed_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare staging insert")
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.Source, r.BusinessKey, r.ContentHash, r.EntityID, r.EntityName,
			r.RegionType, r.State, r.County, r.Metro, r.Population, r.SizeCategory,
			r.PeriodDate.UTC(), r.MetricValue, r.QualityScore, r.AnomalyFlag,
			r.ProcessedAt.UTC(), r.RunID,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert staging row %s", r.BusinessKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit staging")
	}
	return int64(len(records)), nil
}

func (s *SQLiteStore) CurrentDimensions(ctx context.Context, dim string) (map[string]model.DimensionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT surrogate_key, business_key, content_hash, attributes, effective_date, end_date, is_current
		 FROM dimensions WHERE dim = ? AND is_current = 1`, dim)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query current %s", dim)
	}
	defer rows.Close()

	out := make(map[string]model.DimensionRow)
	for rows.Next() {
		row, err := scanDimensionRow(rows)
		if err != nil {
			return nil, err
		}
		out[row.BusinessKey] = row
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate current %s", dim)
}

func (s *SQLiteStore) DimensionVersions(ctx context.Context, dim, businessKey string) ([]model.DimensionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT surrogate_key, business_key, content_hash, attributes, effective_date, end_date, is_current
		 FROM dimensions WHERE dim = ? AND business_key = ? ORDER BY effective_date, surrogate_key`,
		dim, businessKey)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query versions %s/%s", dim, businessKey)
	}
	defer rows.Close()

	var out []model.DimensionRow
	for rows.Next() {
		row, err := scanDimensionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate versions %s/%s", dim, businessKey)
}

// ApplyChangeset closes superseded versions and inserts new current versions
// atomically. Closed rows only ever gain an end date; their attributes are
// never touched.
func (s *SQLiteStore) ApplyChangeset(ctx context.Context, dim string, cs scd.Changeset, processedAt time.Time) (int64, int64, error) {
	if cs.Empty() {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin dimension tx")
	}
	defer tx.Rollback()

	var closed int64
	for _, key := range cs.CloseKeys {
		res, err := tx.ExecContext(ctx,
			`UPDATE dimensions SET end_date = ?, is_current = 0 WHERE surrogate_key = ? AND is_current = 1`,
			processedAt.UTC(), key)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: close dimension version %d", key)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: rows affected")
		}
		closed += n
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dimensions (dim, business_key, content_hash, attributes, effective_date, end_date, is_current)
		 VALUES (?, ?, ?, ?, ?, NULL, 1)`)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: prepare dimension insert")
	}
	defer stmt.Close()

	for _, ins := range cs.Inserts {
		attrs, err := json.Marshal(ins.Attributes)
		if err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: marshal attributes %s", ins.BusinessKey)
		}
		if _, err := stmt.ExecContext(ctx, dim, ins.BusinessKey, ins.ContentHash, string(attrs), ins.EffectiveDate.UTC()); err != nil {
			return 0, 0, eris.Wrapf(err, "sqlite: insert dimension version %s", ins.BusinessKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: commit dimension changeset")
	}
	return closed, int64(len(cs.Inserts)), nil
}

// SeedDataSources inserts registry entries that are not present yet. Existing
// entries are left untouched so source keys stay stable across runs.
func (s *SQLiteStore) SeedDataSources(ctx context.Context, entries []config.RegistryEntry) error {
	for _, e := range entries {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO data_sources (name, provider, data_type, update_cadence, reliability_score)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (name) DO NOTHING`,
			e.Name, e.Provider, e.DataType, e.UpdateCadence, e.ReliabilityScore)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed data source %s", e.Name)
		}
	}
	return nil
}

func (s *SQLiteStore) DataSources(ctx context.Context) (map[string]model.DataSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_key, name, provider, data_type, update_cadence, reliability_score FROM data_sources`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query data sources")
	}
	defer rows.Close()

	out := make(map[string]model.DataSource)
	for rows.Next() {
		var ds model.DataSource
		if err := rows.Scan(&ds.SourceKey, &ds.Name, &ds.Provider, &ds.DataType, &ds.UpdateCadence, &ds.ReliabilityScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan data source")
		}
		out[ds.Name] = ds
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate data sources")
}

// UpsertFacts merges fact rows by natural key. Re-running with unchanged
// inputs rewrites each row with identical values.
func (s *SQLiteStore) UpsertFacts(ctx context.Context, rows []model.FactRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin facts tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facts (time_key, location_key, source_key, business_key, metric_value,
			yoy_change, yoy_pct_change, mom_change, mom_pct_change,
			quality_score, anomaly_flag, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (time_key, location_key, source_key) DO UPDATE SET
			business_key = excluded.business_key,
			metric_value = excluded.metric_value,
			yoy_change = excluded.yoy_change,
			yoy_pct_change = excluded.yoy_pct_change,
			mom_change = excluded.mom_change,
			mom_pct_change = excluded.mom_pct_change,
			quality_score = excluded.quality_score,
			anomaly_flag = excluded.anomaly_flag,
			run_id = excluded.run_id`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare facts upsert")
	}
	defer stmt.Close()

	for _, f := range rows {
		_, err := stmt.ExecContext(ctx,
			f.TimeKey, f.LocationKey, f.SourceKey, f.BusinessKey, f.MetricValue,
			f.YoYChange, f.YoYPctChange, f.MoMChange, f.MoMPctChange,
			f.QualityScore, f.AnomalyFlag, f.RunID)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert fact %d/%d/%d", f.TimeKey, f.LocationKey, f.SourceKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit facts")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) ReplaceTrends(ctx context.Context, rows []model.TrendRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin trends tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mart_trends`); err != nil {
		return 0, eris.Wrap(err, "sqlite: truncate mart_trends")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mart_trends (business_key, market_name, state, source, period_date,
			metric_value, yoy_pct_change, mom_pct_change, temperature, quality_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare trends insert")
	}
	defer stmt.Close()

	for _, t := range rows {
		_, err := stmt.ExecContext(ctx,
			t.BusinessKey, t.MarketName, t.State, t.Source, t.PeriodDate.UTC(),
			t.MetricValue, t.YoYPctChange, t.MoMPctChange, t.Temperature, t.QualityScore)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert trend %s", t.BusinessKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit trends")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) ReplaceRankings(ctx context.Context, rows []model.RankingRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin rankings tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mart_rankings`); err != nil {
		return 0, eris.Wrap(err, "sqlite: truncate mart_rankings")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mart_rankings (business_key, market_name, state, source,
			metric_value, yoy_pct_change, growth_rank, heat_score, temperature)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare rankings insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.BusinessKey, r.MarketName, r.State, r.Source,
			r.MetricValue, r.YoYPctChange, r.GrowthRank, r.HeatScore, r.Temperature)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert ranking %s", r.BusinessKey)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit rankings")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) Rankings(ctx context.Context, limit int) ([]model.RankingRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT business_key, market_name, state, source, metric_value,
			yoy_pct_change, growth_rank, heat_score, temperature
		 FROM mart_rankings ORDER BY growth_rank LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query rankings")
	}
	defer rows.Close()

	var out []model.RankingRow
	for rows.Next() {
		var (
			r   model.RankingRow
			yoy sql.NullFloat64
		)
		if err := rows.Scan(&r.BusinessKey, &r.MarketName, &r.State, &r.Source,
			&r.MetricValue, &yoy, &r.GrowthRank, &r.HeatScore, &r.Temperature); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ranking")
		}
		r.YoYPctChange = nullFloat(yoy)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rankings")
}

// MarketSummary joins a market's latest trend row with its current dimension
// attributes, keyed by business key. Returns nil when the market is unknown.
func (s *SQLiteStore) MarketSummary(ctx context.Context, businessKey string) (*model.MarketSummary, error) {
	var (
		sum model.MarketSummary
		yoy sql.NullFloat64
		mom sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT business_key, market_name, state, source, period_date,
			metric_value, yoy_pct_change, mom_pct_change, temperature
		 FROM mart_trends WHERE business_key = ?
		 ORDER BY period_date DESC LIMIT 1`, businessKey).
		Scan(&sum.BusinessKey, &sum.MarketName, &sum.State, &sum.Source, &sum.PeriodDate,
			&sum.MetricValue, &yoy, &mom, &sum.Temperature)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query market summary %s", businessKey)
	}
	sum.YoYPctChange = nullFloat(yoy)
	sum.MoMPctChange = nullFloat(mom)

	var attrsJSON string
	err = s.db.QueryRowContext(ctx,
		`SELECT attributes FROM dimensions WHERE business_key = ? AND is_current = 1 LIMIT 1`,
		businessKey).Scan(&attrsJSON)
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrapf(err, "sqlite: query dimension attributes %s", businessKey)
	}
	if err == nil {
		var attrs map[string]any
		if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal attributes %s", businessKey)
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
	}
	return &sum, nil
}

func (s *SQLiteStore) TrendSeries(ctx context.Context, businessKey string, months int) ([]model.TrendRow, error) {
	if months <= 0 {
		months = 12
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT business_key, market_name, state, source, period_date,
			metric_value, yoy_pct_change, mom_pct_change, temperature, quality_score
		 FROM mart_trends WHERE business_key = ?
		 ORDER BY period_date DESC LIMIT ?`, businessKey, months)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query trend series %s", businessKey)
	}
	defer rows.Close()

	var out []model.TrendRow
	for rows.Next() {
		var (
			t   model.TrendRow
			yoy sql.NullFloat64
			mom sql.NullFloat64
		)
		if err := rows.Scan(&t.BusinessKey, &t.MarketName, &t.State, &t.Source, &t.PeriodDate,
			&t.MetricValue, &yoy, &mom, &t.Temperature, &t.QualityScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trend")
		}
		t.YoYPctChange = nullFloat(yoy)
		t.MoMPctChange = nullFloat(mom)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate trend series %s", businessKey)
	}

	// Oldest first for chart consumers.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanDimensionRow(rows *sql.Rows) (model.DimensionRow, error) {
	var (
		row       model.DimensionRow
		attrsJSON string
		endDate   sql.NullTime
	)
	if err := rows.Scan(&row.SurrogateKey, &row.BusinessKey, &row.ContentHash,
		&attrsJSON, &row.EffectiveDate, &endDate, &row.IsCurrent); err != nil {
		return row, eris.Wrap(err, "sqlite: scan dimension row")
	}
	if err := json.Unmarshal([]byte(attrsJSON), &row.Attributes); err != nil {
		return row, eris.Wrapf(err, "sqlite: unmarshal attributes %s", row.BusinessKey)
	}
	if endDate.Valid {
		t := endDate.Time
		row.EndDate = &t
	}
	return row, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
