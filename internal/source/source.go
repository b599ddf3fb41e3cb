// Package source exposes raw provider extracts as uniform observation
// records. Adapters read, reshape wide extracts into long form, and nothing
// else: cleaning, scoring, and key derivation happen downstream in staging.
package source

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/fetcher"
	"github.com/sells-group/rent-signals/internal/model"
)

// Source adapts one provider extract to a stream of raw observations.
type Source interface {
	// Name returns the registry identifier for this source (e.g. "zori").
	Name() string

	// Observations reads the provider extract and returns one record per
	// entity/period cell. Unparseable or empty cells yield a nil MetricValue
	// rather than an error; staging decides what to drop.
	Observations(ctx context.Context) ([]model.RawObservation, error)
}

// All returns every configured source adapter in registry order.
func All(cfg *config.Config) []Source {
	return []Source{
		&AptList{Path: cfg.Sources.AptList.Path},
		&ZORI{Path: cfg.Sources.ZORI.Path},
		&FRED{Path: cfg.Sources.FRED.Path},
	}
}

func readTableFile(path string) (*fetcher.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open extract %s", path)
	}
	defer f.Close()
	return fetcher.ReadTable(f)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseFloatPtr(s string) *float64 {
	if s == "" || s == "." {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt64Ptr(s string) *int64 {
	if s == "" {
		return nil
	}
	// Population columns sometimes arrive as "123456.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

func parseDate(s string, layouts ...string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
