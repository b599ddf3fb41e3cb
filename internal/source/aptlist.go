package source

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/model"
)

// AptList reads the ApartmentList rent estimates extract: identity columns
// followed by wide YYYY_MM month columns, melted to one observation per
// location/month.
type AptList struct {
	Path string
}

func (s *AptList) Name() string { return "aptlist" }

var aptlistMonthCol = regexp.MustCompile(`^\d{4}_\d{2}$`)

func (s *AptList) Observations(ctx context.Context) ([]model.RawObservation, error) {
	table, err := readTableFile(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "aptlist: read extract")
	}

	name := table.Col("location_name")
	regionType := table.Col("location_type")
	fips := table.Col("location_fips_code")
	population := table.Col("population")
	state := table.Col("state")
	county := table.Col("county")
	metro := table.Col("metro")
	if name < 0 || fips < 0 {
		return nil, eris.New("aptlist: extract missing location_name/location_fips_code columns")
	}

	// Month columns are identified by shape, not position: the provider
	// appends a new column every release.
	type monthCol struct {
		idx  int
		date string
	}
	var months []monthCol
	for i, h := range table.Header {
		if aptlistMonthCol.MatchString(h) {
			months = append(months, monthCol{idx: i, date: h[:4] + "-" + h[5:] + "-01"})
		}
	}
	if len(months) == 0 {
		return nil, eris.New("aptlist: extract has no YYYY_MM month columns")
	}

	var out []model.RawObservation
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "aptlist: cancelled")
		}
		for _, m := range months {
			period, ok := parseDate(m.date, "2006-01-02")
			if !ok {
				continue
			}
			out = append(out, model.RawObservation{
				Source:      s.Name(),
				EntityID:    cell(row, fips),
				EntityName:  cell(row, name),
				RegionType:  cell(row, regionType),
				State:       cell(row, state),
				County:      cell(row, county),
				Metro:       cell(row, metro),
				Population:  parseInt64Ptr(cell(row, population)),
				PeriodDate:  period,
				MetricValue: parseFloatPtr(cell(row, m.idx)),
			})
		}
	}

	zap.L().Debug("aptlist: extract read",
		zap.Int("locations", len(table.Rows)),
		zap.Int("months", len(months)),
		zap.Int("observations", len(out)),
	)
	return out, nil
}
