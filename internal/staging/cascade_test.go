package staging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/model"
)

func aptlistRules(t *testing.T) *Rules {
	t.Helper()
	r, err := NewRules("aptlist", config.SourceConfig{
		MinDate: "2017-01-01", MaxDate: "2030-12-31",
		MinValue: 100, MaxValue: 10000,
		Anomaly: config.AnomalyConfig{Method: "zscore", ZScoreK: 3},
	})
	require.NoError(t, err)
	return r
}

func fptr(v float64) *float64 { return &v }
func iptr(v int64) *int64     { return &v }

func TestCascade_CleanRow(t *testing.T) {
	c := NewCascade(aptlistRules(t))
	obs := model.RawObservation{
		EntityID: "12420", EntityName: "Tampa", State: "FL",
		Population: iptr(400000), MetricValue: fptr(1850),
	}
	assert.Equal(t, model.QualityClean, c.Score(obs))
}

func TestCascade_FirstMatchWins(t *testing.T) {
	c := NewCascade(aptlistRules(t))

	// Null required field and out-of-range value together score the first
	// triggered condition, not the most severe overall.
	obs := model.RawObservation{
		EntityID: "12420", EntityName: "Tampa",
		Population: iptr(400000), MetricValue: fptr(50000),
	}
	assert.Equal(t, 1, c.Score(obs))

	obs.State = "FL"
	assert.Equal(t, 5, c.Score(obs))
}

func TestCascade_NullMetricBeforeRange(t *testing.T) {
	c := NewCascade(aptlistRules(t))
	obs := model.RawObservation{
		EntityID: "12420", EntityName: "Tampa", State: "FL",
		Population: iptr(400000),
	}
	assert.Equal(t, 2, c.Score(obs))

	obs.MetricValue = fptr(-5)
	assert.Equal(t, 2, c.Score(obs))
}

func TestCascade_SourceSoftChecks(t *testing.T) {
	c := NewCascade(aptlistRules(t))
	obs := model.RawObservation{
		EntityID: "12420", EntityName: "Tampa", State: "FL",
		MetricValue: fptr(1850),
	}
	assert.Equal(t, 7, c.Score(obs), "missing population is a soft defect")

	zoriRules, err := NewRules("zori", config.SourceConfig{
		MinDate: "2015-01-01", MaxDate: "2030-12-31",
		MinValue: 500, MaxValue: 8000,
		Anomaly: config.AnomalyConfig{Method: "zscore", ZScoreK: 3},
	})
	require.NoError(t, err)

	zc := NewCascade(zoriRules)
	zobs := model.RawObservation{
		EntityID: "394514", EntityName: "Tampa, FL", State: "FL",
		MetricValue: fptr(2100),
	}
	assert.Equal(t, 7, zc.Score(zobs), "missing size rank is a soft defect")

	zobs.SizeRank = iptr(18)
	assert.Equal(t, model.QualityClean, zc.Score(zobs))
}

func TestCascade_FredRequiresNoState(t *testing.T) {
	fredRules, err := NewRules("fred", config.SourceConfig{
		MinDate: "2000-01-01", MaxDate: "2030-12-31",
		MinValue: 1, MaxValue: 1000,
		Anomaly: config.AnomalyConfig{Method: "zscore", ZScoreK: 3},
	})
	require.NoError(t, err)

	c := NewCascade(fredRules)
	obs := model.RawObservation{
		EntityID: "CPIAUCSL", EntityName: "CPI All Urban Consumers",
		MetricValue: fptr(310.3),
	}
	assert.Equal(t, model.QualityClean, c.Score(obs))
}

func TestNewRules_Invalid(t *testing.T) {
	_, err := NewRules("aptlist", config.SourceConfig{
		MinDate: "2030-01-01", MaxDate: "2017-01-01",
		Anomaly: config.AnomalyConfig{Method: "zscore"},
	})
	require.Error(t, err)

	_, err = NewRules("aptlist", config.SourceConfig{
		MinDate: "2017-01-01", MaxDate: "2030-12-31",
		Anomaly: config.AnomalyConfig{Method: "madness"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown anomaly method")
}
