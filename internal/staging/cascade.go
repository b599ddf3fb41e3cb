package staging

import (
	"github.com/sells-group/rent-signals/internal/model"
)

// Check is one step of a quality cascade: the ordinal score assigned when the
// condition triggers.
type Check struct {
	Name  string
	Score int
	Fails func(obs model.RawObservation) bool
}

// Cascade is an ordered set of quality checks. Evaluation is first match
// wins: the score reflects the first triggered condition, not the most
// severe overall, and a row passing every check is QualityClean.
type Cascade struct {
	checks []Check
}

// Score evaluates the cascade against one observation.
func (c *Cascade) Score(obs model.RawObservation) int {
	for _, check := range c.checks {
		if check.Fails(obs) {
			return check.Score
		}
	}
	return model.QualityClean
}

// NewCascade builds the quality cascade for a source. Every source shares
// the same shape (required-field null check, then metric null/non-positive,
// then out-of-expected-range, then soft checks) with source-specific
// required fields and bounds.
func NewCascade(rules *Rules) *Cascade {
	checks := []Check{
		{
			Name:  "null_required_fields",
			Score: 1,
			Fails: func(obs model.RawObservation) bool {
				if obs.EntityID == "" || obs.EntityName == "" {
					return true
				}
				// Geographic sources also require a state.
				if rules.Source != "fred" && obs.State == "" {
					return true
				}
				return false
			},
		},
		{
			Name:  "null_or_nonpositive_metric",
			Score: 2,
			Fails: func(obs model.RawObservation) bool {
				return obs.MetricValue == nil || *obs.MetricValue <= 0
			},
		},
		{
			Name:  "metric_out_of_expected_range",
			Score: 5,
			Fails: func(obs model.RawObservation) bool {
				return *obs.MetricValue < rules.MinValue || *obs.MetricValue > rules.MaxValue
			},
		},
	}

	switch rules.Source {
	case "aptlist":
		checks = append(checks, Check{
			Name:  "missing_population",
			Score: 7,
			Fails: func(obs model.RawObservation) bool { return obs.Population == nil },
		})
	case "zori":
		checks = append(checks, Check{
			Name:  "missing_size_rank",
			Score: 7,
			Fails: func(obs model.RawObservation) bool { return obs.SizeRank == nil },
		})
	}

	return &Cascade{checks: checks}
}
