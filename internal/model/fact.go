package model

// FactRow is one immutable measurement keyed by (TimeKey, LocationKey,
// SourceKey). LocationKey references the dimension version current at build
// time; re-runs with unchanged staging must reproduce identical rows.
type FactRow struct {
	TimeKey      int      `json:"time_key"` // YYYYMMDD of the period date
	LocationKey  int64    `json:"location_key"`
	SourceKey    int64    `json:"source_key"`
	BusinessKey  string   `json:"business_key"`
	MetricValue  float64  `json:"metric_value"`
	YoYChange    *float64 `json:"yoy_change,omitempty"`
	YoYPctChange *float64 `json:"yoy_pct_change,omitempty"`
	MoMChange    *float64 `json:"mom_change,omitempty"`
	MoMPctChange *float64 `json:"mom_pct_change,omitempty"`
	QualityScore int      `json:"quality_score"`
	AnomalyFlag  bool     `json:"anomaly_flag"`
	RunID        string   `json:"run_id"`
}
