package staging

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/model"
)

// flagAnomalies sets AnomalyFlag on records that are statistical outliers
// under the source's configured policy. All statistics are computed over a
// fully materialized snapshot of the already-cleaned values before any flag
// is applied; nothing is recomputed incrementally per row.
func flagAnomalies(records []model.StagedRecord, cfg config.AnomalyConfig) int {
	if len(records) == 0 {
		return 0
	}

	var flagged int
	switch {
	case cfg.Method == "percentile":
		flagged = flagByPercentile(records, cfg)
	case cfg.Scope == "window":
		flagged = flagByWindowedZScore(records, cfg)
	default:
		flagged = flagByGlobalZScore(records, cfg)
	}
	return flagged
}

// flagByPercentile flags values outside the [low, high] percentiles of the
// full distribution for the source.
func flagByPercentile(records []model.StagedRecord, cfg config.AnomalyConfig) int {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.MetricValue
	}
	sort.Float64s(values)

	lo := percentile(values, cfg.PercentileLow)
	hi := percentile(values, cfg.PercentileHigh)

	var flagged int
	for i := range records {
		if records[i].MetricValue < lo || records[i].MetricValue > hi {
			records[i].AnomalyFlag = true
			flagged++
		}
	}
	return flagged
}

// percentile returns the p-quantile (0..1) of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// flagByGlobalZScore flags values more than k standard deviations from the
// source-wide mean.
func flagByGlobalZScore(records []model.StagedRecord, cfg config.AnomalyConfig) int {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.MetricValue
	}
	mean, std := meanStddev(values)
	if std == 0 {
		return 0
	}

	var flagged int
	for i := range records {
		if math.Abs(records[i].MetricValue-mean) > cfg.ZScoreK*std {
			records[i].AnomalyFlag = true
			flagged++
		}
	}
	return flagged
}

// flagByWindowedZScore flags values more than k standard deviations from the
// mean of the trailing window of prior periods, partitioned by entity. The
// window statistics come from the unmutated input series; a value with fewer
// than two prior periods in its window is never flagged.
func flagByWindowedZScore(records []model.StagedRecord, cfg config.AnomalyConfig) int {
	window := cfg.Window
	if window < 2 {
		zap.L().Warn("staging: anomaly window too small, using default",
			zap.Int("window", window),
		)
		window = 5
	}

	// Index records per entity in period order.
	byEntity := make(map[string][]int)
	for i, r := range records {
		byEntity[r.BusinessKey] = append(byEntity[r.BusinessKey], i)
	}

	var flagged int
	for _, idxs := range byEntity {
		sort.Slice(idxs, func(a, b int) bool {
			return records[idxs[a]].PeriodDate.Before(records[idxs[b]].PeriodDate)
		})
		series := make([]float64, len(idxs))
		for j, i := range idxs {
			series[j] = records[i].MetricValue
		}
		for j, i := range idxs {
			start := j - window
			if start < 0 {
				start = 0
			}
			prior := series[start:j]
			if len(prior) < 2 {
				continue
			}
			mean, std := meanStddev(prior)
			if std == 0 {
				continue
			}
			if math.Abs(series[j]-mean) > cfg.ZScoreK*std {
				records[i].AnomalyFlag = true
				flagged++
			}
		}
	}
	return flagged
}

func meanStddev(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(values)))
	return mean, std
}
