package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-signals/internal/model"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func byPeriod(obs []model.RawObservation, id string, period time.Time) *model.RawObservation {
	for i := range obs {
		if obs[i].EntityID == id && obs[i].PeriodDate.Equal(period) {
			return &obs[i]
		}
	}
	return nil
}

func TestAptList_MeltsWideMonths(t *testing.T) {
	path := writeFixture(t, "rent_estimates.csv",
		`location_name,location_type,location_fips_code,population,state,county,metro,2023_01,2023_02
Tampa,City,1271000,403364,Florida,Hillsborough County,"Tampa, FL",1842,1850
Orlando,City,1253000,316081,Florida,Orange County,"Orlando, FL",1705,
`)

	src := &AptList{Path: path}
	obs, err := src.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 4, "two locations, two month columns")

	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	tampa := byPeriod(obs, "1271000", jan)
	require.NotNil(t, tampa)
	assert.Equal(t, "aptlist", tampa.Source)
	assert.Equal(t, "Tampa", tampa.EntityName)
	assert.Equal(t, "City", tampa.RegionType)
	assert.Equal(t, "Florida", tampa.State)
	assert.Equal(t, "Tampa, FL", tampa.Metro)
	require.NotNil(t, tampa.Population)
	assert.Equal(t, int64(403364), *tampa.Population)
	require.NotNil(t, tampa.MetricValue)
	assert.Equal(t, 1842.0, *tampa.MetricValue)

	feb := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	orlando := byPeriod(obs, "1253000", feb)
	require.NotNil(t, orlando)
	assert.Nil(t, orlando.MetricValue, "empty cells pass through as null metrics")
}

func TestAptList_MissingIdentityColumns(t *testing.T) {
	path := writeFixture(t, "bad.csv", "foo,bar\n1,2\n")
	_, err := (&AptList{Path: path}).Observations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location_name/location_fips_code")
}

func TestAptList_NoMonthColumns(t *testing.T) {
	path := writeFixture(t, "flat.csv", "location_name,location_fips_code\nTampa,1271000\n")
	_, err := (&AptList{Path: path}).Observations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no YYYY_MM month columns")
}

func TestZORI_MeltsMonthEndColumns(t *testing.T) {
	path := writeFixture(t, "zori.csv",
		`RegionID,SizeRank,RegionName,RegionType,StateName,2023-01-31,2023-02-28
394514,18,"Tampa, FL",msa,FL,2071.3,2078.9
394913,1,"New York, NY",msa,NY,3201.5,
`)

	src := &ZORI{Path: path}
	obs, err := src.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 4)

	jan := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	tampa := byPeriod(obs, "394514", jan)
	require.NotNil(t, tampa)
	assert.Equal(t, "zori", tampa.Source)
	assert.Equal(t, "Tampa, FL", tampa.EntityName)
	assert.Equal(t, "FL", tampa.State)
	require.NotNil(t, tampa.SizeRank)
	assert.Equal(t, int64(18), *tampa.SizeRank)
	require.NotNil(t, tampa.MetricValue)
	assert.Equal(t, 2071.3, *tampa.MetricValue)
	assert.Equal(t, "Tampa, FL", tampa.Metro, "metro extract falls back to the region name")

	feb := time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)
	ny := byPeriod(obs, "394913", feb)
	require.NotNil(t, ny)
	assert.Nil(t, ny.MetricValue)
}

func TestFRED_LongForm(t *testing.T) {
	path := writeFixture(t, "fred.csv",
		`series_id,date,value
CPIAUCSL,2023-01-01,300.536
CPIAUCSL,2023-02-01,.
CUUR0000SEHA,2023-01-01,372.1
MYSTERY1,2023-01-01,5.5
`)

	src := &FRED{Path: path}
	obs, err := src.Observations(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 4)

	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cpi := byPeriod(obs, "CPIAUCSL", jan)
	require.NotNil(t, cpi)
	assert.Equal(t, "fred", cpi.Source)
	assert.Equal(t, "CPI All Urban Consumers", cpi.EntityName)
	assert.Equal(t, "series", cpi.RegionType)
	assert.Equal(t, "US", cpi.State)
	require.NotNil(t, cpi.MetricValue)
	assert.Equal(t, 300.536, *cpi.MetricValue)

	feb := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	missing := byPeriod(obs, "CPIAUCSL", feb)
	require.NotNil(t, missing)
	assert.Nil(t, missing.MetricValue, `"." is a null, not a parse error`)

	unknown := byPeriod(obs, "MYSTERY1", jan)
	require.NotNil(t, unknown)
	assert.Equal(t, "MYSTERY1", unknown.EntityName, "unknown series keep their ID as name")
}

func TestParseHelpers(t *testing.T) {
	assert.Nil(t, parseFloatPtr(""))
	assert.Nil(t, parseFloatPtr("."))
	assert.Nil(t, parseFloatPtr("n/a"))
	require.NotNil(t, parseFloatPtr("12.5"))
	assert.Equal(t, 12.5, *parseFloatPtr("12.5"))

	assert.Nil(t, parseInt64Ptr(""))
	require.NotNil(t, parseInt64Ptr("42"))
	assert.Equal(t, int64(42), *parseInt64Ptr("42"))
	require.NotNil(t, parseInt64Ptr("403364.0"), "provider population columns carry float formatting")
	assert.Equal(t, int64(403364), *parseInt64Ptr("403364.0"))

	_, ok := parseDate("2023-01-31", "2006-01-02")
	assert.True(t, ok)
	_, ok = parseDate("not-a-date", "2006-01-02")
	assert.False(t, ok)
}
