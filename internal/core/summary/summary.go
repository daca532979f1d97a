package summary

import (
	"time"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/metrics"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/period"
)

// Record is one pre-aggregated metrics row for one store and one period at a
// given level. Owned entirely by the rollup engine; recomputation is an
// upsert keyed by (store_id, period_key), so reruns are idempotent.
type Record struct {
	StoreID     string
	Level       period.Level
	PeriodKey   string
	PeriodStart time.Time
	Additive    metrics.Additive
	Derived     metrics.Derived
	UpdatedAt   time.Time
}

// New builds a record for the period beginning at start, leaving derived
// metrics to be filled in after additive finalization.
func New(level period.Level, storeID string, start time.Time, add metrics.Additive) Record {
	return Record{
		StoreID:     storeID,
		Level:       level,
		PeriodKey:   period.Key(level, start),
		PeriodStart: start,
		Additive:    add,
	}
}
