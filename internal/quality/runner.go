package quality

import (
	"go.uber.org/zap"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-signals/internal/model"
)

// Run evaluates every assertion targeting the named relation against its
// snapshot and returns one result per assertion. Both severities are
// evaluated and reported; only the caller decides whether to halt.
func Run(relation string, rows Relation, assertions []Assertion) []model.CheckResult {
	var results []model.CheckResult
	for _, a := range assertions {
		if a.Relation != relation {
			continue
		}
		failures := evaluate(a, rows)
		res := model.CheckResult{
			Assertion:   a.Name,
			Relation:    relation,
			Failures:    failures,
			ShouldWarn:  a.Severity == SeverityWarn,
			ShouldError: a.Severity == SeverityError,
		}
		if failures > 0 {
			log := zap.L().With(
				zap.String("assertion", a.Name),
				zap.String("relation", relation),
				zap.Int64("failures", failures),
			)
			if res.ShouldError {
				log.Error("quality: assertion failed")
			} else {
				log.Warn("quality: assertion failed")
			}
		}
		results = append(results, res)
	}
	return results
}

// Halt returns the first failing error-severity result, or nil when the
// relation may be consumed downstream.
func Halt(results []model.CheckResult) *model.CheckResult {
	for i := range results {
		if results[i].Failed() {
			return &results[i]
		}
	}
	return nil
}

// HaltError converts a failing check into the run-level error surfaced to
// the run controller.
func HaltError(c *model.CheckResult) error {
	return eris.Errorf("quality: assertion %s on %s failed with %d failures", c.Assertion, c.Relation, c.Failures)
}

// evaluate returns the failure count for one assertion. Every kind of the
// closed set is handled here.
func evaluate(a Assertion, rows Relation) int64 {
	switch a.Kind {
	case KindNotNull:
		var failures int64
		for _, r := range rows {
			if isNull(r[a.Column]) {
				failures++
			}
		}
		return failures

	case KindUnique:
		seen := make(map[string]bool, len(rows))
		var failures int64
		for _, r := range rows {
			key := asString(r[a.Column])
			if seen[key] {
				failures++
			}
			seen[key] = true
		}
		return failures

	case KindAcceptedValues:
		accepted := make(map[string]bool, len(a.Values))
		for _, v := range a.Values {
			accepted[v] = true
		}
		var failures int64
		for _, r := range rows {
			if v := r[a.Column]; !isNull(v) && !accepted[asString(v)] {
				failures++
			}
		}
		return failures

	case KindRange:
		var failures int64
		for _, r := range rows {
			v, ok := asFloat(r[a.Column])
			if !ok {
				// Null values are range-exempt; not_null covers presence.
				continue
			}
			if (a.Min != nil && v < *a.Min) || (a.Max != nil && v > *a.Max) {
				failures++
			}
		}
		return failures

	case KindRowCountBetween:
		n := int64(len(rows))
		if (a.MinRows != nil && n < *a.MinRows) || (a.MaxRows != nil && n > *a.MaxRows) {
			return 1
		}
		return 0

	default:
		// Unreachable for assertions that passed Validate.
		return 0
	}
}
