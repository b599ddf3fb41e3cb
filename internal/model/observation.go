package model

import "time"

// RawObservation is one provider observation as exposed by a source adapter:
// one entity, one period, one metric value. Adapters reshape provider extracts
// (wide or long) into this form but perform no cleaning.
type RawObservation struct {
	Source      string    `json:"source"`
	EntityID    string    `json:"entity_id"`
	EntityName  string    `json:"entity_name"`
	RegionType  string    `json:"region_type"`
	State       string    `json:"state"`
	County      string    `json:"county,omitempty"`
	Metro       string    `json:"metro,omitempty"`
	Population  *int64    `json:"population,omitempty"`
	SizeRank    *int64    `json:"size_rank,omitempty"`
	PeriodDate  time.Time `json:"period_date"`
	MetricValue *float64  `json:"metric_value"`
}
