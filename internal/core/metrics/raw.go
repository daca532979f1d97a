package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// HourTotals is one hour's grouped order totals scanned from a raw tier.
type HourTotals struct {
	HourStart  time.Time
	GrossSales decimal.Decimal
	NetSales   decimal.Decimal
	OrderCount int64
	ItemCount  int64
}

// HourCategorySales is one (hour, category) order-line total. The engine
// classifies the category in Go; the store never computes derived flags.
type HourCategorySales struct {
	HourStart time.Time
	Category  string
	Amount    decimal.Decimal
}

// HourCost is one hour's waste cost total.
type HourCost struct {
	HourStart time.Time
	Cost      decimal.Decimal
}
