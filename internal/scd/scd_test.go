package scd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-signals/internal/model"
)

var runTime = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func current(key, hash string, surrogate int64) map[string]model.DimensionRow {
	return map[string]model.DimensionRow{
		key: {
			SurrogateKey:  surrogate,
			BusinessKey:   key,
			ContentHash:   hash,
			EffectiveDate: runTime.AddDate(0, -6, 0),
			IsCurrent:     true,
		},
	}
}

func TestDiff_NewKeyInserts(t *testing.T) {
	cs := Diff(nil, []Candidate{
		{BusinessKey: "tampa", ContentHash: "h1", PeriodDate: runTime},
	}, runTime)

	require.Len(t, cs.Inserts, 1)
	assert.Empty(t, cs.CloseKeys)
	assert.Equal(t, "tampa", cs.Inserts[0].BusinessKey)
	assert.Equal(t, runTime, cs.Inserts[0].EffectiveDate)
	assert.True(t, cs.Inserts[0].IsCurrent)
	assert.Nil(t, cs.Inserts[0].EndDate)
}

func TestDiff_UnchangedHashIsNoop(t *testing.T) {
	cs := Diff(current("tampa", "h1", 42), []Candidate{
		{BusinessKey: "tampa", ContentHash: "h1", PeriodDate: runTime},
	}, runTime)

	assert.True(t, cs.Empty(), "re-running unchanged input must produce no changes")
}

func TestDiff_ChangedHashClosesAndInserts(t *testing.T) {
	cs := Diff(current("tampa", "h1", 42), []Candidate{
		{BusinessKey: "tampa", ContentHash: "h2", PeriodDate: runTime},
	}, runTime)

	assert.Equal(t, []int64{42}, cs.CloseKeys)
	require.Len(t, cs.Inserts, 1)
	assert.Equal(t, "h2", cs.Inserts[0].ContentHash)
	assert.Equal(t, runTime, cs.Inserts[0].EffectiveDate,
		"close and insert share the run time so validity intervals stay gapless")
}

func TestDiff_AbsentKeyUntouched(t *testing.T) {
	// A key missing from this run's candidates keeps its current version.
	cs := Diff(current("tampa", "h1", 42), []Candidate{
		{BusinessKey: "miami", ContentHash: "h9", PeriodDate: runTime},
	}, runTime)

	assert.Empty(t, cs.CloseKeys)
	require.Len(t, cs.Inserts, 1)
	assert.Equal(t, "miami", cs.Inserts[0].BusinessKey)
}

func TestDiff_DeterministicOrder(t *testing.T) {
	candidates := []Candidate{
		{BusinessKey: "zeta", ContentHash: "h1", PeriodDate: runTime},
		{BusinessKey: "alpha", ContentHash: "h2", PeriodDate: runTime},
		{BusinessKey: "mid", ContentHash: "h3", PeriodDate: runTime},
	}
	cs := Diff(nil, candidates, runTime)

	require.Len(t, cs.Inserts, 3)
	assert.Equal(t, "alpha", cs.Inserts[0].BusinessKey)
	assert.Equal(t, "mid", cs.Inserts[1].BusinessKey)
	assert.Equal(t, "zeta", cs.Inserts[2].BusinessKey)
}

func TestDedupe_KeepsLatestPeriod(t *testing.T) {
	older := runTime.AddDate(0, -3, 0)
	got := dedupe([]Candidate{
		{BusinessKey: "tampa", ContentHash: "old", PeriodDate: older},
		{BusinessKey: "tampa", ContentHash: "new", PeriodDate: runTime},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "new", got["tampa"].ContentHash)

	// Input order must not matter.
	got = dedupe([]Candidate{
		{BusinessKey: "tampa", ContentHash: "new", PeriodDate: runTime},
		{BusinessKey: "tampa", ContentHash: "old", PeriodDate: older},
	})
	assert.Equal(t, "new", got["tampa"].ContentHash)
}

func TestDedupe_TieKeepsLaterInput(t *testing.T) {
	got := dedupe([]Candidate{
		{BusinessKey: "tampa", ContentHash: "first", PeriodDate: runTime},
		{BusinessKey: "tampa", ContentHash: "second", PeriodDate: runTime},
	})
	assert.Equal(t, "second", got["tampa"].ContentHash)
}

func TestDiff_DuplicateCandidatesSingleInsert(t *testing.T) {
	cs := Diff(nil, []Candidate{
		{BusinessKey: "tampa", ContentHash: "h1", PeriodDate: runTime.AddDate(0, -1, 0)},
		{BusinessKey: "tampa", ContentHash: "h1", PeriodDate: runTime},
	}, runTime)

	assert.Len(t, cs.Inserts, 1, "one version per business key per run")
}
