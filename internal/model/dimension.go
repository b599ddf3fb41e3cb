package model

import "time"

// DimensionRow is one SCD Type 2 version of a dimension entity. For a given
// business key at most one row is current (open end date). Closed rows are
// never modified.
type DimensionRow struct {
	SurrogateKey  int64          `json:"surrogate_key"`
	BusinessKey   string         `json:"business_key"`
	ContentHash   string         `json:"content_hash"`
	Attributes    map[string]any `json:"attributes"`
	EffectiveDate time.Time      `json:"effective_date"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	IsCurrent     bool           `json:"is_current"`
}

// Dimension names used as relation identifiers in the warehouse and the
// quality suites.
const (
	DimLocation       = "dim_location"
	DimEconomicSeries = "dim_economic_series"
	DimDataSource     = "dim_data_source"
)

// DataSource is one entry in the static source registry dimension. Entries
// are config-defined, inserted once, and never historized.
type DataSource struct {
	SourceKey        int64  `json:"source_key"`
	Name             string `json:"name"`
	Provider         string `json:"provider"`
	DataType         string `json:"data_type"`
	UpdateCadence    string `json:"update_cadence"`
	ReliabilityScore int    `json:"reliability_score"`
}
