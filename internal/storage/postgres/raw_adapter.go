package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/metrics"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

const (
	queryHourlyOrderTotalsTpl = `
		SELECT
			date_trunc('hour', placed_at) AS hour_start,
			COALESCE(SUM(gross_sales), 0)::text,
			COALESCE(SUM(net_sales), 0)::text,
			COUNT(*),
			COALESCE(SUM(item_count), 0)
		FROM %s
		WHERE store_id = $1
		  AND business_date >= $2
		  AND business_date <= $3
		GROUP BY 1
		ORDER BY 1
	`

	queryHourlyCategorySalesTpl = `
		SELECT
			date_trunc('hour', placed_at) AS hour_start,
			category,
			COALESCE(SUM(line_total), 0)::text
		FROM %s
		WHERE store_id = $1
		  AND business_date >= $2
		  AND business_date <= $3
		GROUP BY 1, 2
		ORDER BY 1, 2
	`

	queryHourlyWasteCostTpl = `
		SELECT
			date_trunc('hour', recorded_at) AS hour_start,
			COALESCE(SUM(cost), 0)::text
		FROM %s
		WHERE store_id = $1
		  AND business_date >= $2
		  AND business_date <= $3
		GROUP BY 1
		ORDER BY 1
	`

	queryCountStoreRangeTpl = `
		SELECT COUNT(*) FROM %s
		WHERE store_id = $1 AND business_date >= $2 AND business_date <= $3
	`

	queryCountAllTpl = `SELECT COUNT(*) FROM %s`

	querySumColumnTpl = `
		SELECT COALESCE(SUM(%s), 0)::text FROM %s
		WHERE store_id = $1 AND business_date >= $2 AND business_date <= $3
	`

	queryMinMaxDatesTpl = `
		SELECT MIN(business_date), MAX(business_date) FROM %s WHERE business_date < $1
	`

	queryDistinctStoresTpl = `SELECT DISTINCT store_id FROM %s ORDER BY store_id`
)

// RawAdapter reads raw business records from either tier. Table names come
// from the typed dataset registry, never from caller strings.
type RawAdapter struct {
	tiers *Tiers
}

// NewRawAdapter creates a raw-record adapter over the tier pair.
func NewRawAdapter(tiers *Tiers) *RawAdapter {
	return &RawAdapter{tiers: tiers}
}

// HourlyOrderTotals groups one store's orders by hour for a date range.
func (a *RawAdapter) HourlyOrderTotals(ctx context.Context, t tier.Tier, storeID string, start, end time.Time) ([]metrics.HourTotals, error) {
	desc, err := dataset.Get(dataset.KindOrders)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(queryHourlyOrderTotalsTpl, desc.Table(t))
	rows, err := a.tiers.ForTier(t).QueryContext(ctx, query, storeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("hourly order totals (%s): %w", t, err)
	}
	defer rows.Close()

	var out []metrics.HourTotals
	for rows.Next() {
		var (
			h          metrics.HourTotals
			gross, net string
		)
		if err := rows.Scan(&h.HourStart, &gross, &net, &h.OrderCount, &h.ItemCount); err != nil {
			return nil, fmt.Errorf("scan hourly order totals: %w", err)
		}
		if h.GrossSales, err = parseDecimal(gross); err != nil {
			return nil, err
		}
		if h.NetSales, err = parseDecimal(net); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HourlyCategorySales groups one store's order lines by hour and category.
func (a *RawAdapter) HourlyCategorySales(ctx context.Context, t tier.Tier, storeID string, start, end time.Time) ([]metrics.HourCategorySales, error) {
	desc, err := dataset.Get(dataset.KindOrderLines)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(queryHourlyCategorySalesTpl, desc.Table(t))
	rows, err := a.tiers.ForTier(t).QueryContext(ctx, query, storeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("hourly category sales (%s): %w", t, err)
	}
	defer rows.Close()

	var out []metrics.HourCategorySales
	for rows.Next() {
		var (
			c      metrics.HourCategorySales
			amount string
		)
		if err := rows.Scan(&c.HourStart, &c.Category, &amount); err != nil {
			return nil, fmt.Errorf("scan hourly category sales: %w", err)
		}
		if c.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HourlyWasteCost groups one store's waste events by hour.
func (a *RawAdapter) HourlyWasteCost(ctx context.Context, t tier.Tier, storeID string, start, end time.Time) ([]metrics.HourCost, error) {
	desc, err := dataset.Get(dataset.KindWasteEvents)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(queryHourlyWasteCostTpl, desc.Table(t))
	rows, err := a.tiers.ForTier(t).QueryContext(ctx, query, storeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("hourly waste cost (%s): %w", t, err)
	}
	defer rows.Close()

	var out []metrics.HourCost
	for rows.Next() {
		var (
			c    metrics.HourCost
			cost string
		)
		if err := rows.Scan(&c.HourStart, &cost); err != nil {
			return nil, fmt.Errorf("scan hourly waste cost: %w", err)
		}
		if c.Cost, err = parseDecimal(cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountStoreRange counts one store's rows in a date range on one tier.
func (a *RawAdapter) CountStoreRange(ctx context.Context, t tier.Tier, desc dataset.Descriptor, storeID string, start, end time.Time) (int64, error) {
	query := fmt.Sprintf(queryCountStoreRangeTpl, desc.Table(t))
	var n int64
	if err := a.tiers.ForTier(t).QueryRowContext(ctx, query, storeID, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s rows (%s): %w", desc.Base, t, err)
	}
	return n, nil
}

// CountAll counts every row of a dataset on one tier.
func (a *RawAdapter) CountAll(ctx context.Context, t tier.Tier, desc dataset.Descriptor) (int64, error) {
	var n int64
	if err := a.tiers.ForTier(t).QueryRowContext(ctx, fmt.Sprintf(queryCountAllTpl, desc.Table(t))).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s rows (%s): %w", desc.Base, t, err)
	}
	return n, nil
}

// SumColumn sums one additive column for a store and date range on one tier.
// The column is validated against the dataset layout by the caller
// (metric definitions are checked at load time).
func (a *RawAdapter) SumColumn(ctx context.Context, t tier.Tier, desc dataset.Descriptor, column, storeID string, start, end time.Time) (decimal.Decimal, error) {
	query := fmt.Sprintf(querySumColumnTpl, column, desc.Table(t))
	var s string
	if err := a.tiers.ForTier(t).QueryRowContext(ctx, query, storeID, start, end).Scan(&s); err != nil {
		return decimal.Zero, fmt.Errorf("sum %s.%s (%s): %w", desc.Base, column, t, err)
	}
	return parseDecimal(s)
}

// MinMaxDates returns the business-date bounds of rows strictly older than
// before on one tier. ok is false when the tier holds no such rows.
func (a *RawAdapter) MinMaxDates(ctx context.Context, t tier.Tier, desc dataset.Descriptor, before time.Time) (min, max time.Time, ok bool, err error) {
	query := fmt.Sprintf(queryMinMaxDatesTpl, desc.Table(t))
	var minN, maxN sql.NullTime
	if err := a.tiers.ForTier(t).QueryRowContext(ctx, query, before).Scan(&minN, &maxN); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("min/max dates for %s (%s): %w", desc.Base, t, err)
	}
	if !minN.Valid || !maxN.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return minN.Time, maxN.Time, true, nil
}

// ListStores returns the distinct store ids present in the orders dataset
// across both tiers.
func (a *RawAdapter) ListStores(ctx context.Context) ([]string, error) {
	desc, err := dataset.Get(dataset.KindOrders)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, t := range []tier.Tier{tier.Hot, tier.Archive} {
		rows, err := a.tiers.ForTier(t).QueryContext(ctx, fmt.Sprintf(queryDistinctStoresTpl, desc.Table(t)))
		if err != nil {
			return nil, fmt.Errorf("list stores (%s): %w", t, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan store id: %w", err)
			}
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}
