package warehouse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/scd"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func stagedFixture(key string, period time.Time) model.StagedRecord {
	return model.StagedRecord{
		Source:       "aptlist",
		BusinessKey:  key,
		ContentHash:  "h1",
		EntityID:     "12345",
		EntityName:   "Tampa",
		RegionType:   "City",
		State:        "Florida",
		PeriodDate:   period,
		MetricValue:  1842,
		QualityScore: 10,
		ProcessedAt:  period,
		RunID:        "run-1",
	}
}

func TestPostgres_ReplaceStaging(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM staging WHERE source = \$1`).
		WithArgs("aptlist").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"staging"}, stagingColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	period := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []model.StagedRecord{
		stagedFixture("k1", period),
		stagedFixture("k2", period),
	}

	n, err := store.ReplaceStaging(context.Background(), "aptlist", records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceStaging_CopyFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM staging WHERE source = \$1`).
		WithArgs("zori").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging"}, stagingColumns).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	period := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.ReplaceStaging(context.Background(), "zori", []model.StagedRecord{stagedFixture("k1", period)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO staging")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyChangeset(t *testing.T) {
	store, mock := newMockStore(t)

	processed := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	attrs := map[string]any{"name": "Tampa", "state": "Florida"}
	payload, err := json.Marshal(attrs)
	require.NoError(t, err)

	cs := scd.Changeset{
		CloseKeys: []int64{7},
		Inserts: []model.DimensionRow{
			{BusinessKey: "k1", ContentHash: "h2", Attributes: attrs, EffectiveDate: processed},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dimensions SET end_date = \$1, is_current = FALSE`).
		WithArgs(processed, cs.CloseKeys).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO dimensions`).
		WithArgs(model.DimLocation, "k1", "h2", payload, processed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	closed, inserted, err := store.ApplyChangeset(context.Background(), model.DimLocation, cs, processed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)
	assert.Equal(t, int64(1), inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyChangeset_EmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	closed, inserted, err := store.ApplyChangeset(context.Background(), model.DimLocation, scd.Changeset{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), closed)
	assert.Equal(t, int64(0), inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyChangeset_CloseFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	processed := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	cs := scd.Changeset{CloseKeys: []int64{3}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dimensions SET end_date = \$1, is_current = FALSE`).
		WithArgs(processed, cs.CloseKeys).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, _, err := store.ApplyChangeset(context.Background(), model.DimLocation, cs, processed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close dimension versions")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CurrentDimensions(t *testing.T) {
	store, mock := newMockStore(t)

	effective := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT surrogate_key, business_key, content_hash, attributes, effective_date, end_date, is_current`).
		WithArgs(model.DimLocation).
		WillReturnRows(pgxmock.NewRows([]string{
			"surrogate_key", "business_key", "content_hash", "attributes",
			"effective_date", "end_date", "is_current",
		}).AddRow(int64(1), "k1", "h1", []byte(`{"name":"Tampa","population":403364}`), effective, (*time.Time)(nil), true))

	current, err := store.CurrentDimensions(context.Background(), model.DimLocation)
	require.NoError(t, err)
	require.Len(t, current, 1)

	row := current["k1"]
	assert.Equal(t, int64(1), row.SurrogateKey)
	assert.Equal(t, "h1", row.ContentHash)
	assert.Equal(t, "Tampa", row.Attributes["name"])
	assert.Equal(t, float64(403364), row.Attributes["population"])
	assert.True(t, row.IsCurrent)
	assert.Nil(t, row.EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinishRun_UnknownRun(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs(string(model.RunStatusComplete), pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.FinishRun(context.Background(), &model.RunReport{
		RunID:  "missing",
		Status: model.RunStatusComplete,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MarketSummary_UnknownKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT business_key, market_name, state, source, period_date`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	sum, err := store.MarketSummary(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
