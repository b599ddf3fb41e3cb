// Package marts recomputes the reporting views from facts and dimensions.
// Marts hold no state of their own; every run rebuilds them in full.
package marts

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/model"
)

// Temperature classifies a market by its year-over-year growth. Markets
// without a full year of history read as Warm rather than guessing a
// direction from partial data.
func Temperature(yoyPct *float64, cfg config.MartsConfig) string {
	if yoyPct == nil {
		return model.MarketWarm
	}
	switch {
	case *yoyPct > cfg.HotThreshold:
		return model.MarketHot
	case *yoyPct < cfg.CoolThreshold:
		return model.MarketCool
	default:
		return model.MarketWarm
	}
}

// Build derives the trends and rankings marts from fact rows and the current
// location dimension. Facts whose business key is not a current location
// (macro series, or keys retired since the facts were written) are excluded
// from market views.
func Build(facts []model.FactRow, locations map[string]model.DimensionRow, sources map[string]model.DataSource, cfg config.MartsConfig) ([]model.TrendRow, []model.RankingRow) {
	sourceName := make(map[int64]string, len(sources))
	for name, ds := range sources {
		sourceName[ds.SourceKey] = name
	}

	trends := make([]model.TrendRow, 0, len(facts))
	for _, f := range facts {
		loc, ok := locations[f.BusinessKey]
		if !ok {
			continue
		}
		trends = append(trends, model.TrendRow{
			BusinessKey:  f.BusinessKey,
			MarketName:   attrString(loc.Attributes, "name"),
			State:        attrString(loc.Attributes, "state"),
			Source:       sourceName[f.SourceKey],
			PeriodDate:   periodFromTimeKey(f.TimeKey),
			MetricValue:  f.MetricValue,
			YoYPctChange: f.YoYPctChange,
			MoMPctChange: f.MoMPctChange,
			Temperature:  Temperature(f.YoYPctChange, cfg),
			QualityScore: f.QualityScore,
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].BusinessKey != trends[j].BusinessKey {
			return trends[i].BusinessKey < trends[j].BusinessKey
		}
		return trends[i].PeriodDate.Before(trends[j].PeriodDate)
	})

	rankings := rank(trends, cfg)
	return trends, rankings
}

// rank keeps each market's latest trend row, orders markets by YoY growth
// descending (markets without growth data last), and scores market heat on a
// 0-100 min-max scale over the ranked set.
func rank(trends []model.TrendRow, cfg config.MartsConfig) []model.RankingRow {
	latest := make(map[string]model.TrendRow)
	for _, t := range trends {
		prev, seen := latest[t.BusinessKey]
		if !seen || t.PeriodDate.After(prev.PeriodDate) {
			latest[t.BusinessKey] = t
		}
	}

	markets := make([]model.TrendRow, 0, len(latest))
	for _, t := range latest {
		markets = append(markets, t)
	}
	sort.Slice(markets, func(i, j int) bool {
		yi, yj := markets[i].YoYPctChange, markets[j].YoYPctChange
		switch {
		case yi != nil && yj != nil && *yi != *yj:
			return *yi > *yj
		case yi != nil && yj == nil:
			return true
		case yi == nil && yj != nil:
			return false
		}
		return markets[i].BusinessKey < markets[j].BusinessKey
	})

	if cfg.MaxMarkets > 0 && len(markets) > cfg.MaxMarkets {
		zap.L().Warn("marts: market count exceeds sanity bound, truncating rankings",
			zap.Int("markets", len(markets)),
			zap.Int("max", cfg.MaxMarkets),
		)
		markets = markets[:cfg.MaxMarkets]
	}

	minYoY, maxYoY, any := yoyBounds(markets)

	out := make([]model.RankingRow, 0, len(markets))
	for i, m := range markets {
		out = append(out, model.RankingRow{
			BusinessKey:  m.BusinessKey,
			MarketName:   m.MarketName,
			State:        m.State,
			Source:       m.Source,
			MetricValue:  m.MetricValue,
			YoYPctChange: m.YoYPctChange,
			GrowthRank:   i + 1,
			HeatScore:    heatScore(m.YoYPctChange, minYoY, maxYoY, any),
			Temperature:  m.Temperature,
		})
	}
	return out
}

func yoyBounds(markets []model.TrendRow) (min, max float64, any bool) {
	for _, m := range markets {
		if m.YoYPctChange == nil {
			continue
		}
		v := *m.YoYPctChange
		if !any || v < min {
			min = v
		}
		if !any || v > max {
			max = v
		}
		any = true
	}
	return min, max, any
}

// heatScore maps YoY growth onto [0, 100] over the run's observed spread. A
// degenerate spread (one market, or all equal) reads as neutral 50; missing
// growth reads as 0.
func heatScore(yoyPct *float64, min, max float64, any bool) float64 {
	if yoyPct == nil || !any {
		return 0
	}
	if max == min {
		return 50
	}
	return (*yoyPct - min) / (max - min) * 100
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func periodFromTimeKey(timeKey int) time.Time {
	y := timeKey / 10000
	m := timeKey / 100 % 100
	d := timeKey % 100
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}
