package staging

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/rent-signals/internal/config"
)

// Rules holds one source's parsed cleaning rules.
type Rules struct {
	Source   string
	MinDate  time.Time
	MaxDate  time.Time
	MinValue float64
	MaxValue float64
	Anomaly  config.AnomalyConfig
}

// NewRules parses a source's config into cleaning rules.
func NewRules(source string, cfg config.SourceConfig) (*Rules, error) {
	minDate, err := time.Parse("2006-01-02", cfg.MinDate)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: %s min_date", source)
	}
	maxDate, err := time.Parse("2006-01-02", cfg.MaxDate)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: %s max_date", source)
	}
	if !maxDate.After(minDate) {
		return nil, eris.Errorf("staging: %s max_date %s not after min_date %s", source, cfg.MaxDate, cfg.MinDate)
	}
	a := cfg.Anomaly
	if a.Method != "percentile" && a.Method != "zscore" {
		return nil, eris.Errorf("staging: %s unknown anomaly method %q", source, a.Method)
	}
	if a.Scope != "" && a.Scope != "global" && a.Scope != "window" {
		return nil, eris.Errorf("staging: %s unknown anomaly scope %q", source, a.Scope)
	}
	return &Rules{
		Source:   source,
		MinDate:  minDate,
		MaxDate:  maxDate,
		MinValue: cfg.MinValue,
		MaxValue: cfg.MaxValue,
		Anomaly:  a,
	}, nil
}

var titleCaser = cases.Title(language.AmericanEnglish)

// normalizeName standardizes a geographic name: trims whitespace and
// title-cases values the provider shipped in all caps or all lowercase.
func normalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return titleCaser.String(strings.ToLower(s))
	}
	return s
}

// sizeCategory classifies a market by population, falling back to the
// provider's size rank when population is unavailable.
func sizeCategory(population, sizeRank *int64) string {
	switch {
	case population != nil:
		p := *population
		switch {
		case p >= 1_000_000:
			return "Major"
		case p >= 250_000:
			return "Large"
		case p >= 50_000:
			return "Medium"
		default:
			return "Small"
		}
	case sizeRank != nil:
		r := *sizeRank
		switch {
		case r <= 10:
			return "Major"
		case r <= 50:
			return "Large"
		case r <= 150:
			return "Medium"
		default:
			return "Small"
		}
	default:
		return ""
	}
}
