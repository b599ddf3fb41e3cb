package model

import "time"

// Quality score bounds. Scores are ordinal severity tags assigned by the
// cleaning cascade: 1 is the most severe defect, QualityClean is a row that
// passed every check.
const (
	QualityWorst = 1
	QualityClean = 10
)

// StagedRecord is a cleaned observation with stable identity keys, a quality
// score, and an anomaly flag. Staging is truncated and rebuilt every run.
type StagedRecord struct {
	Source       string    `json:"source"`
	BusinessKey  string    `json:"business_key"`
	ContentHash  string    `json:"content_hash"`
	EntityID     string    `json:"entity_id"`
	EntityName   string    `json:"entity_name"`
	RegionType   string    `json:"region_type"`
	State        string    `json:"state"`
	County       string    `json:"county,omitempty"`
	Metro        string    `json:"metro,omitempty"`
	Population   *int64    `json:"population,omitempty"`
	SizeCategory string    `json:"size_category,omitempty"`
	PeriodDate   time.Time `json:"period_date"`
	MetricValue  float64   `json:"metric_value"`
	QualityScore int       `json:"quality_score"`
	AnomalyFlag  bool      `json:"anomaly_flag"`
	ProcessedAt  time.Time `json:"processed_at"`
	RunID        string    `json:"run_id"`
}

// CleanStats counts rows excluded by the cleaning filters. Filtered rows are
// a data-cleaning policy, not an error.
type CleanStats struct {
	Input          int `json:"input"`
	Staged         int `json:"staged"`
	NullIdentity   int `json:"null_identity"`
	BadMetric      int `json:"bad_metric"`
	OutOfRangeDate int `json:"out_of_range_date"`
	Anomalies      int `json:"anomalies"`
}

// Filtered returns the total number of rows dropped by the cleaning filters.
func (s CleanStats) Filtered() int {
	return s.NullIdentity + s.BadMetric + s.OutOfRangeDate
}
