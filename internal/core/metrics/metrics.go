package metrics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Additive holds the summable metrics of one summary period. Higher-level
// periods are exactly the sum of their children's Additive values, which
// is the monotonicity the auditor checks.
type Additive struct {
	GrossSales decimal.Decimal
	NetSales   decimal.Decimal
	FoodSales  decimal.Decimal
	WasteCost  decimal.Decimal
	OrderCount int64
	ItemCount  int64
}

// Add folds another additive set into this one and returns the result.
func (a Additive) Add(b Additive) Additive {
	return Additive{
		GrossSales: a.GrossSales.Add(b.GrossSales),
		NetSales:   a.NetSales.Add(b.NetSales),
		FoodSales:  a.FoodSales.Add(b.FoodSales),
		WasteCost:  a.WasteCost.Add(b.WasteCost),
		OrderCount: a.OrderCount + b.OrderCount,
		ItemCount:  a.ItemCount + b.ItemCount,
	}
}

// IsZero reports whether every metric is zero (nothing to summarize).
func (a Additive) IsZero() bool {
	return a.OrderCount == 0 && a.ItemCount == 0 &&
		a.GrossSales.IsZero() && a.NetSales.IsZero() &&
		a.FoodSales.IsZero() && a.WasteCost.IsZero()
}

// Derived holds ratio and comparison metrics. Computed only after the
// period's additive metrics are finalized; GrowthPct is null when no prior
// period has been committed yet.
type Derived struct {
	AvgOrderValue decimal.Decimal
	FoodSalesPct  decimal.Decimal
	GrowthPct     decimal.NullDecimal
}

var hundred = decimal.NewFromInt(100)

// Derive computes the period's derived metrics. prior is the engine's own
// previously committed summary for the preceding period, or nil when absent.
func Derive(a Additive, prior *Additive) Derived {
	var d Derived
	if a.OrderCount > 0 {
		d.AvgOrderValue = a.GrossSales.DivRound(decimal.NewFromInt(a.OrderCount), 2)
	}
	if a.GrossSales.IsPositive() {
		d.FoodSalesPct = a.FoodSales.Div(a.GrossSales).Mul(hundred).Round(2)
	}
	if prior != nil && prior.GrossSales.IsPositive() {
		growth := a.GrossSales.Sub(prior.GrossSales).Div(prior.GrossSales).Mul(hundred).Round(2)
		d.GrowthPct = decimal.NullDecimal{Decimal: growth, Valid: true}
	}
	return d
}

// foodCategories classifies order-line categories into food vs non-food.
// Computed here rather than by generated columns so both tiers agree on the
// classification regardless of storage engine.
var foodCategories = map[string]bool{
	"pizza":    true,
	"sides":    true,
	"desserts": true,
	"salads":   true,
	"wings":    true,
	"pasta":    true,
}

// IsFood reports whether an order-line category counts toward food sales.
func IsFood(category string) bool {
	return foodCategories[strings.ToLower(strings.TrimSpace(category))]
}
