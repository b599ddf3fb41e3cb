// Package facts builds immutable fact rows from staged records and current
// dimension versions, deriving period-over-period metrics from ordered
// time-series windows.
package facts

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-signals/internal/model"
)

// Lag offsets for the derived metrics, in periods of the monthly grain.
const (
	yoyLag = 12
	momLag = 1
)

// Build joins staged records to current dimension surrogate keys and derives
// YoY/MoM change metrics per entity. A staged business key with no current
// dimension row is a referential-integrity defect: the dimension builder runs
// first, so a miss is a pipeline-ordering bug and fails the run.
func Build(records []model.StagedRecord, dims map[string]model.DimensionRow, sourceKeys map[string]int64, run model.RunContext) ([]model.FactRow, error) {
	byEntity := make(map[string][]model.StagedRecord)
	for _, r := range records {
		byEntity[r.BusinessKey] = append(byEntity[r.BusinessKey], r)
	}

	entityKeys := make([]string, 0, len(byEntity))
	for k := range byEntity {
		entityKeys = append(entityKeys, k)
	}
	sort.Strings(entityKeys)

	var out []model.FactRow
	for _, key := range entityKeys {
		series := byEntity[key]
		dim, ok := dims[key]
		if !ok {
			return nil, eris.Errorf("facts: no current dimension row for business key %s (%s)", key, series[0].EntityName)
		}
		sourceKey, ok := sourceKeys[series[0].Source]
		if !ok {
			return nil, eris.Errorf("facts: unregistered source %q", series[0].Source)
		}

		// Strict period-ascending ordering per entity partition. Duplicate
		// periods are rejected upstream by the staging uniqueness assertion.
		sort.Slice(series, func(i, j int) bool {
			return series[i].PeriodDate.Before(series[j].PeriodDate)
		})

		for i, rec := range series {
			row := model.FactRow{
				TimeKey:      timeKey(rec),
				LocationKey:  dim.SurrogateKey,
				SourceKey:    sourceKey,
				BusinessKey:  rec.BusinessKey,
				MetricValue:  rec.MetricValue,
				QualityScore: rec.QualityScore,
				AnomalyFlag:  rec.AnomalyFlag,
				RunID:        rec.RunID,
			}
			row.YoYChange, row.YoYPctChange = lagChange(series, i, yoyLag)
			row.MoMChange, row.MoMPctChange = lagChange(series, i, momLag)
			out = append(out, row)
		}
	}
	return out, nil
}

// lagChange derives the absolute and percentage change against the value lag
// periods back. An absent or zero prior value yields nils, not an error.
func lagChange(series []model.StagedRecord, i, lag int) (*float64, *float64) {
	j := i - lag
	if j < 0 {
		return nil, nil
	}
	prior := series[j].MetricValue
	change := series[i].MetricValue - prior
	if prior == 0 {
		return &change, nil
	}
	pct := round2(change / prior * 100)
	return &change, &pct
}

func timeKey(rec model.StagedRecord) int {
	return rec.PeriodDate.Year()*10000 + int(rec.PeriodDate.Month())*100 + rec.PeriodDate.Day()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
