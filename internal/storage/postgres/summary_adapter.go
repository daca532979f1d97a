package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/period"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/summary"
)

// levelTables maps each rollup level to its summary relation. Summary
// relations live on the hot tier; they are reporting-local and rebuildable.
var levelTables = map[period.Level]string{
	period.Hour:    "summary_hourly",
	period.Day:     "summary_daily",
	period.Week:    "summary_weekly",
	period.Month:   "summary_monthly",
	period.Quarter: "summary_quarterly",
	period.Year:    "summary_yearly",
}

const (
	queryUpsertSummaryTpl = `
		INSERT INTO %s (
			store_id, period_key, period_start,
			gross_sales, net_sales, food_sales, waste_cost, order_count, item_count,
			avg_order_value, food_sales_pct, growth_pct, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (store_id, period_key)
		DO UPDATE SET
			period_start    = EXCLUDED.period_start,
			gross_sales     = EXCLUDED.gross_sales,
			net_sales       = EXCLUDED.net_sales,
			food_sales      = EXCLUDED.food_sales,
			waste_cost      = EXCLUDED.waste_cost,
			order_count     = EXCLUDED.order_count,
			item_count      = EXCLUDED.item_count,
			avg_order_value = EXCLUDED.avg_order_value,
			food_sales_pct  = EXCLUDED.food_sales_pct,
			growth_pct      = EXCLUDED.growth_pct,
			updated_at      = EXCLUDED.updated_at
	`

	queryGetSummaryTpl = `
		SELECT
			store_id, period_key, period_start,
			gross_sales::text, net_sales::text, food_sales::text, waste_cost::text,
			order_count, item_count,
			avg_order_value::text, food_sales_pct::text, growth_pct, updated_at
		FROM %s
		WHERE store_id = $1 AND period_key = $2
	`

	queryRangeSummaryTpl = `
		SELECT
			store_id, period_key, period_start,
			gross_sales::text, net_sales::text, food_sales::text, waste_cost::text,
			order_count, item_count,
			avg_order_value::text, food_sales_pct::text, growth_pct, updated_at
		FROM %s
		WHERE store_id = $1 AND period_start >= $2 AND period_start < $3
		ORDER BY period_start ASC
	`
)

// SummaryAdapter persists summary records on the hot tier. A re-run for an
// already-committed period fully overwrites it; that is the rebuild
// mechanism, so the upsert sets every column.
type SummaryAdapter struct {
	db *sql.DB
}

// NewSummaryAdapter creates a summary adapter sharing the hot connection.
func NewSummaryAdapter(db *sql.DB) *SummaryAdapter {
	return &SummaryAdapter{db: db}
}

// tableFor resolves the summary relation for a level.
func tableFor(level period.Level) (string, error) {
	t, ok := levelTables[level]
	if !ok {
		return "", fmt.Errorf("no summary relation for level %q", level)
	}
	return t, nil
}

// Upsert writes one summary record, overwriting any previous values for the
// same (store_id, period_key).
func (a *SummaryAdapter) Upsert(ctx context.Context, rec summary.Record) error {
	table, err := tableFor(rec.Level)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, fmt.Sprintf(queryUpsertSummaryTpl, table),
		rec.StoreID,
		rec.PeriodKey,
		rec.PeriodStart,
		rec.Additive.GrossSales,
		rec.Additive.NetSales,
		rec.Additive.FoodSales,
		rec.Additive.WasteCost,
		rec.Additive.OrderCount,
		rec.Additive.ItemCount,
		rec.Derived.AvgOrderValue,
		rec.Derived.FoodSalesPct,
		rec.Derived.GrowthPct,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s summary %s/%s: %w", rec.Level, rec.StoreID, rec.PeriodKey, err)
	}

	slog.Debug("[SummaryAdapter] Upserted",
		"level", rec.Level,
		"store", rec.StoreID,
		"period", rec.PeriodKey,
	)
	return nil
}

// Get fetches one committed summary record, or nil when absent.
func (a *SummaryAdapter) Get(ctx context.Context, level period.Level, storeID, periodKey string) (*summary.Record, error) {
	table, err := tableFor(level)
	if err != nil {
		return nil, err
	}

	rec, err := scanSummaryRow(a.db.QueryRowContext(ctx, fmt.Sprintf(queryGetSummaryTpl, table), storeID, periodKey), level)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s summary %s/%s: %w", level, storeID, periodKey, err)
	}
	return rec, nil
}

// Range fetches one store's summary records with period_start in
// [from, toExclusive), ascending.
func (a *SummaryAdapter) Range(ctx context.Context, level period.Level, storeID string, from, toExclusive time.Time) ([]summary.Record, error) {
	table, err := tableFor(level)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(queryRangeSummaryTpl, table), storeID, from, toExclusive)
	if err != nil {
		return nil, fmt.Errorf("range %s summaries for %s: %w", level, storeID, err)
	}
	defer rows.Close()

	var out []summary.Record
	for rows.Next() {
		rec, err := scanSummaryRow(rows, level)
		if err != nil {
			return nil, fmt.Errorf("range %s summaries for %s: %w", level, storeID, err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSummaryRow scans one summary row. NUMERIC columns arrive as text and
// are parsed into exact decimals; growth_pct may be NULL (no prior period).
func scanSummaryRow(row rowScanner, level period.Level) (*summary.Record, error) {
	var (
		rec                                       summary.Record
		gross, net, food, waste, avgOrder, foodPct string
		growth                                    decimal.NullDecimal
	)
	err := row.Scan(
		&rec.StoreID,
		&rec.PeriodKey,
		&rec.PeriodStart,
		&gross,
		&net,
		&food,
		&waste,
		&rec.Additive.OrderCount,
		&rec.Additive.ItemCount,
		&avgOrder,
		&foodPct,
		&growth,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Level = level
	if rec.Additive.GrossSales, err = parseDecimal(gross); err != nil {
		return nil, err
	}
	if rec.Additive.NetSales, err = parseDecimal(net); err != nil {
		return nil, err
	}
	if rec.Additive.FoodSales, err = parseDecimal(food); err != nil {
		return nil, err
	}
	if rec.Additive.WasteCost, err = parseDecimal(waste); err != nil {
		return nil, err
	}
	if rec.Derived.AvgOrderValue, err = parseDecimal(avgOrder); err != nil {
		return nil, err
	}
	if rec.Derived.FoodSalesPct, err = parseDecimal(foodPct); err != nil {
		return nil, err
	}
	rec.Derived.GrowthPct = growth
	return &rec, nil
}
