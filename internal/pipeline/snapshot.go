package pipeline

import (
	"fmt"

	"github.com/sells-group/rent-signals/internal/model"
	"github.com/sells-group/rent-signals/internal/quality"
)

// Snapshot builders materialize each stage's output as the row sets the
// quality gate asserts against. Composite columns (entity_period,
// natural_key) exist only in the snapshot so uniqueness over a compound key
// stays a single-column assertion.

func stagingSnapshot(records []model.StagedRecord) quality.Relation {
	rows := make(quality.Relation, 0, len(records))
	for _, r := range records {
		rows = append(rows, quality.Row{
			"business_key":  r.BusinessKey,
			"content_hash":  r.ContentHash,
			"entity_period": r.BusinessKey + "|" + r.PeriodDate.Format("2006-01-02"),
			"entity_name":   r.EntityName,
			"state":         r.State,
			"size_category": r.SizeCategory,
			"metric_value":  r.MetricValue,
			"quality_score": r.QualityScore,
			"anomaly_flag":  r.AnomalyFlag,
		})
	}
	return rows
}

func dimensionSnapshot(current map[string]model.DimensionRow) quality.Relation {
	rows := make(quality.Relation, 0, len(current))
	for _, d := range current {
		rows = append(rows, quality.Row{
			"surrogate_key": d.SurrogateKey,
			"business_key":  d.BusinessKey,
			"content_hash":  d.ContentHash,
			"is_current":    d.IsCurrent,
		})
	}
	return rows
}

func factSnapshot(facts []model.FactRow) quality.Relation {
	rows := make(quality.Relation, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, quality.Row{
			"natural_key":    fmt.Sprintf("%d|%d|%d", f.TimeKey, f.LocationKey, f.SourceKey),
			"time_key":       f.TimeKey,
			"location_key":   f.LocationKey,
			"source_key":     f.SourceKey,
			"metric_value":   f.MetricValue,
			"yoy_pct_change": ptrValue(f.YoYPctChange),
			"mom_pct_change": ptrValue(f.MoMPctChange),
			"quality_score":  f.QualityScore,
		})
	}
	return rows
}

func trendSnapshot(trends []model.TrendRow) quality.Relation {
	rows := make(quality.Relation, 0, len(trends))
	for _, t := range trends {
		rows = append(rows, quality.Row{
			"business_key": t.BusinessKey,
			"market_name":  t.MarketName,
			"temperature":  t.Temperature,
			"metric_value": t.MetricValue,
		})
	}
	return rows
}

func rankingSnapshot(rankings []model.RankingRow) quality.Relation {
	rows := make(quality.Relation, 0, len(rankings))
	for _, r := range rankings {
		rows = append(rows, quality.Row{
			"business_key": r.BusinessKey,
			"growth_rank":  r.GrowthRank,
			"heat_score":   r.HeatScore,
			"temperature":  r.Temperature,
		})
	}
	return rows
}

// ptrValue unwraps an optional metric for snapshot rows; nil stays nil so
// not_null and range assertions see real null semantics.
func ptrValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
