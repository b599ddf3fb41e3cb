// Package quality implements the declarative validation layer: a closed set
// of assertion kinds evaluated against each stage's output, with
// per-assertion warn/error severity.
package quality

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// Kind enumerates the assertion variants. The set is closed: the runner
// handles every kind exhaustively and a new kind is a compile-time decision.
type Kind string

const (
	KindNotNull         Kind = "not_null"
	KindUnique          Kind = "unique"
	KindAcceptedValues  Kind = "accepted_values"
	KindRange           Kind = "range"
	KindRowCountBetween Kind = "row_count_between"
)

// Severity controls what a non-zero failure count does to the run.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Assertion is one declarative check against a named relation.
type Assertion struct {
	Name     string   `yaml:"name"`
	Relation string   `yaml:"-"`
	Kind     Kind     `yaml:"kind"`
	Column   string   `yaml:"column,omitempty"`
	Values   []string `yaml:"values,omitempty"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	MinRows  *int64   `yaml:"min_rows,omitempty"`
	MaxRows  *int64   `yaml:"max_rows,omitempty"`
	Severity Severity `yaml:"severity"`
}

// Validate checks an assertion's internal consistency.
func (a Assertion) Validate() error {
	if a.Name == "" {
		return eris.New("quality: assertion missing name")
	}
	if a.Severity != SeverityWarn && a.Severity != SeverityError {
		return eris.Errorf("quality: assertion %s: unknown severity %q", a.Name, a.Severity)
	}
	switch a.Kind {
	case KindNotNull, KindUnique:
		if a.Column == "" {
			return eris.Errorf("quality: assertion %s: %s requires a column", a.Name, a.Kind)
		}
	case KindAcceptedValues:
		if a.Column == "" || len(a.Values) == 0 {
			return eris.Errorf("quality: assertion %s: accepted_values requires a column and values", a.Name)
		}
	case KindRange:
		if a.Column == "" || (a.Min == nil && a.Max == nil) {
			return eris.Errorf("quality: assertion %s: range requires a column and min or max", a.Name)
		}
	case KindRowCountBetween:
		if a.MinRows == nil && a.MaxRows == nil {
			return eris.Errorf("quality: assertion %s: row_count_between requires min_rows or max_rows", a.Name)
		}
	default:
		return eris.Errorf("quality: assertion %s: unknown kind %q", a.Name, a.Kind)
	}
	return nil
}

// Row is one record of a relation snapshot, keyed by column name.
type Row map[string]any

// Relation is the materialized output of one stage, as seen by the gate.
type Relation []Row

func isNull(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case *float64:
		return t == nil
	case *int64:
		return t == nil
	default:
		return false
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case *float64:
		if t == nil {
			return 0, false
		}
		return *t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
