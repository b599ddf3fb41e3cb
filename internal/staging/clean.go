// Package staging implements the cleaning and identity stage: row filtering,
// stable key derivation, quality scoring, and anomaly detection. It produces
// one staged record stream per source and touches no dimension or fact state.
package staging

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/model"
)

// Clean filters, keys, scores, and anomaly-flags one source's raw
// observations. Filtered rows are excluded silently and counted; they are a
// cleaning policy, not an error.
func Clean(ctx context.Context, rules *Rules, obs []model.RawObservation, run model.RunContext) ([]model.StagedRecord, model.CleanStats, error) {
	log := zap.L().With(zap.String("source", rules.Source))
	cascade := NewCascade(rules)

	stats := model.CleanStats{Input: len(obs)}
	records := make([]model.StagedRecord, 0, len(obs))

	for _, o := range obs {
		if err := ctx.Err(); err != nil {
			return nil, stats, eris.Wrapf(err, "staging: %s cancelled", rules.Source)
		}

		switch {
		case o.EntityID == "" || o.EntityName == "":
			stats.NullIdentity++
			continue
		case o.MetricValue == nil || *o.MetricValue <= 0:
			stats.BadMetric++
			continue
		case o.PeriodDate.Before(rules.MinDate) || o.PeriodDate.After(rules.MaxDate):
			stats.OutOfRangeDate++
			continue
		}

		rec := model.StagedRecord{
			Source:       o.Source,
			BusinessKey:  BusinessKey(o),
			EntityID:     o.EntityID,
			EntityName:   normalizeName(o.EntityName),
			RegionType:   o.RegionType,
			State:        normalizeName(o.State),
			County:       normalizeName(o.County),
			Metro:        normalizeName(o.Metro),
			Population:   o.Population,
			SizeCategory: sizeCategory(o.Population, o.SizeRank),
			PeriodDate:   o.PeriodDate,
			MetricValue:  *o.MetricValue,
			QualityScore: cascade.Score(o),
			ProcessedAt:  run.ProcessedAt,
			RunID:        run.RunID,
		}
		rec.ContentHash = ContentHash(rec)
		records = append(records, rec)
	}

	stats.Staged = len(records)
	stats.Anomalies = flagAnomalies(records, rules.Anomaly)

	log.Info("staging: source cleaned",
		zap.Int("input", stats.Input),
		zap.Int("staged", stats.Staged),
		zap.Int("filtered", stats.Filtered()),
		zap.Int("anomalies", stats.Anomalies),
	)
	return records, stats, nil
}
