// Package dims turns staged records into dimension candidates and applies
// the resulting changesets. Locations (rent sources) and economic series
// (macro sources) are historized separately; the data source registry is
// static and seeded from config.
package dims

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/scd"
)

// DimFor maps a source name to the dimension its entities belong to.
func DimFor(source string) string {
	if source == "fred" {
		return model.DimEconomicSeries
	}
	return model.DimLocation
}

// LocationCandidates builds dimension candidates from rent-source staged
// records. One candidate per record; the diff's keep-latest policy collapses
// them per business key.
func LocationCandidates(records []model.StagedRecord) []scd.Candidate {
	out := make([]scd.Candidate, 0, len(records))
	for _, r := range records {
		attrs := map[string]any{
			"name":        r.EntityName,
			"region_type": r.RegionType,
			"state":       r.State,
			"source":      r.Source,
		}
		if r.County != "" {
			attrs["county"] = r.County
		}
		if r.Metro != "" {
			attrs["metro"] = r.Metro
		}
		if r.Population != nil {
			attrs["population"] = *r.Population
		}
		if r.SizeCategory != "" {
			attrs["size_category"] = r.SizeCategory
		}
		out = append(out, scd.Candidate{
			BusinessKey: r.BusinessKey,
			ContentHash: r.ContentHash,
			Attributes:  attrs,
			PeriodDate:  r.PeriodDate,
		})
	}
	return out
}

// SeriesCandidates builds dimension candidates from macro-source staged
// records.
func SeriesCandidates(records []model.StagedRecord) []scd.Candidate {
	out := make([]scd.Candidate, 0, len(records))
	for _, r := range records {
		out = append(out, scd.Candidate{
			BusinessKey: r.BusinessKey,
			ContentHash: r.ContentHash,
			Attributes: map[string]any{
				"series_id": r.EntityID,
				"name":      r.EntityName,
				"source":    r.Source,
			},
			PeriodDate: r.PeriodDate,
		})
	}
	return out
}

// Applier persists dimension changesets.
type Applier interface {
	CurrentDimensions(ctx context.Context, dim string) (map[string]model.DimensionRow, error)
	ApplyChangeset(ctx context.Context, dim string, cs scd.Changeset, processedAt time.Time) (int64, int64, error)
}

// Result summarizes one dimension update.
type Result struct {
	Dim      string
	Closed   int64
	Inserted int64
}

// Update diffs candidates against the dimension's current versions and
// applies the changeset. An empty changeset is the expected re-run outcome
// and writes nothing.
func Update(ctx context.Context, store Applier, dim string, candidates []scd.Candidate, processedAt time.Time) (Result, error) {
	res := Result{Dim: dim}

	current, err := store.CurrentDimensions(ctx, dim)
	if err != nil {
		return res, eris.Wrapf(err, "dims: load current %s", dim)
	}

	cs := scd.Diff(current, candidates, processedAt)
	if cs.Empty() {
		zap.L().Info("dims: no changes", zap.String("dim", dim))
		return res, nil
	}

	closed, inserted, err := store.ApplyChangeset(ctx, dim, cs, processedAt)
	if err != nil {
		return res, eris.Wrapf(err, "dims: apply changeset %s", dim)
	}
	res.Closed = closed
	res.Inserted = inserted

	zap.L().Info("dims: applied changeset",
		zap.String("dim", dim),
		zap.Int64("closed", closed),
		zap.Int64("inserted", inserted),
	)
	return res, nil
}

// Partition splits staged records by the dimension their source feeds,
// preserving input order within each group. Group iteration order is sorted
// so downstream updates run deterministically.
func Partition(records []model.StagedRecord) (dims []string, byDim map[string][]model.StagedRecord) {
	byDim = make(map[string][]model.StagedRecord)
	for _, r := range records {
		d := DimFor(r.Source)
		byDim[d] = append(byDim[d], r)
	}
	for d := range byDim {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	return dims, byDim
}

// Candidates dispatches to the right candidate builder for a dimension.
func Candidates(dim string, records []model.StagedRecord) []scd.Candidate {
	if dim == model.DimEconomicSeries {
		return SeriesCandidates(records)
	}
	return LocationCandidates(records)
}
