package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/model"
)

// FRED reads the consolidated FRED observations extract written by the fetch
// command: one row per series/date, already in long form.
type FRED struct {
	Path string
}

func (s *FRED) Name() string { return "fred" }

// Labels for the series the pipeline tracks. Unknown series pass through
// with the series ID as their name.
var fredSeriesLabels = map[string]string{
	"CPIAUCSL":     "CPI All Urban Consumers",
	"CUUR0000SEHA": "CPI Rent of Primary Residence",
	"CUURA321SEHA": "CPI Rent of Primary Residence, Tampa",
}

func (s *FRED) Observations(ctx context.Context) ([]model.RawObservation, error) {
	table, err := readTableFile(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "fred: read extract")
	}

	seriesID := table.Col("series_id")
	date := table.Col("date")
	value := table.Col("value")
	if seriesID < 0 || date < 0 || value < 0 {
		return nil, eris.New("fred: extract missing series_id/date/value columns")
	}

	var out []model.RawObservation
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "fred: cancelled")
		}
		period, ok := parseDate(cell(row, date), "2006-01-02", "2006-01")
		if !ok {
			continue
		}
		id := cell(row, seriesID)
		label := fredSeriesLabels[id]
		if label == "" {
			label = id
		}
		out = append(out, model.RawObservation{
			Source:      s.Name(),
			EntityID:    id,
			EntityName:  label,
			RegionType:  "series",
			State:       "US",
			PeriodDate:  period,
			MetricValue: parseFloatPtr(cell(row, value)),
		})
	}

	zap.L().Debug("fred: extract read", zap.Int("observations", len(out)))
	return out, nil
}
