package source

import (
	"context"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/model"
)

// ZORI reads the Zillow Observed Rent Index metro extract: RegionID/RegionName
// identity columns followed by wide YYYY-MM-DD month-end columns, melted to
// one observation per region/month.
type ZORI struct {
	Path string
}

func (s *ZORI) Name() string { return "zori" }

var zoriMonthCol = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func (s *ZORI) Observations(ctx context.Context) ([]model.RawObservation, error) {
	table, err := readTableFile(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "zori: read extract")
	}

	regionID := table.Col("RegionID")
	regionName := table.Col("RegionName")
	regionType := table.Col("RegionType")
	stateName := table.Col("StateName")
	countyName := table.Col("CountyName")
	metro := table.Col("Metro")
	sizeRank := table.Col("SizeRank")
	if regionID < 0 || regionName < 0 {
		return nil, eris.New("zori: extract missing RegionID/RegionName columns")
	}

	var monthIdx []int
	for i, h := range table.Header {
		if zoriMonthCol.MatchString(h) {
			monthIdx = append(monthIdx, i)
		}
	}
	if len(monthIdx) == 0 {
		return nil, eris.New("zori: extract has no YYYY-MM-DD month columns")
	}

	var out []model.RawObservation
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "zori: cancelled")
		}

		// The metro-level extract has no Metro column; the region is the metro.
		metroName := cell(row, metro)
		if metroName == "" {
			metroName = cell(row, regionName)
		}

		for _, i := range monthIdx {
			period, ok := parseDate(table.Header[i], "2006-01-02")
			if !ok {
				continue
			}
			out = append(out, model.RawObservation{
				Source:      s.Name(),
				EntityID:    cell(row, regionID),
				EntityName:  cell(row, regionName),
				RegionType:  cell(row, regionType),
				State:       cell(row, stateName),
				County:      cell(row, countyName),
				Metro:       metroName,
				SizeRank:    parseInt64Ptr(cell(row, sizeRank)),
				PeriodDate:  period,
				MetricValue: parseFloatPtr(cell(row, i)),
			})
		}
	}

	zap.L().Debug("zori: extract read",
		zap.Int("regions", len(table.Rows)),
		zap.Int("months", len(monthIdx)),
		zap.Int("observations", len(out)),
	)
	return out, nil
}
