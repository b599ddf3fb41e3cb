package model

import "time"

// Market temperature classes derived from YoY growth.
const (
	MarketHot  = "Hot"
	MarketWarm = "Warm"
	MarketCool = "Cool"
)

// TrendRow is one market/period row of the rent trends mart. Marts are
// derived state, rebuilt in full every run.
type TrendRow struct {
	BusinessKey  string    `json:"business_key"`
	MarketName   string    `json:"market_name"`
	State        string    `json:"state"`
	Source       string    `json:"source"`
	PeriodDate   time.Time `json:"period_date"`
	MetricValue  float64   `json:"metric_value"`
	YoYPctChange *float64  `json:"yoy_pct_change,omitempty"`
	MoMPctChange *float64  `json:"mom_pct_change,omitempty"`
	Temperature  string    `json:"temperature"`
	QualityScore int       `json:"quality_score"`
}

// RankingRow is one market of the rankings mart: latest value per market
// ranked by YoY growth with a 0-100 heat score.
type RankingRow struct {
	BusinessKey  string   `json:"business_key"`
	MarketName   string   `json:"market_name"`
	State        string   `json:"state"`
	Source       string   `json:"source"`
	MetricValue  float64  `json:"metric_value"`
	YoYPctChange *float64 `json:"yoy_pct_change,omitempty"`
	GrowthRank   int      `json:"growth_rank"`
	HeatScore    float64  `json:"heat_score"`
	Temperature  string   `json:"temperature"`
}

// MarketSummary is the presentation-boundary view of one market: current
// dimension attributes joined with its latest fact, keyed by business key so
// consumers never see surrogate-key churn.
type MarketSummary struct {
	BusinessKey  string    `json:"business_key"`
	MarketName   string    `json:"market_name"`
	State        string    `json:"state"`
	Metro        string    `json:"metro,omitempty"`
	Population   *int64    `json:"population,omitempty"`
	SizeCategory string    `json:"size_category,omitempty"`
	Source       string    `json:"source"`
	PeriodDate   time.Time `json:"period_date"`
	MetricValue  float64   `json:"metric_value"`
	YoYPctChange *float64  `json:"yoy_pct_change,omitempty"`
	MoMPctChange *float64  `json:"mom_pct_change,omitempty"`
	Temperature  string    `json:"temperature"`
}
