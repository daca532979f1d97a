package router

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// TierDB resolves a tier to its connection. Implemented by the postgres
// Tiers pair.
type TierDB interface {
	ForTier(t tier.Tier) *sql.DB
}

// Row is one raw business record, keyed by column name.
type Row map[string]interface{}

// Executor runs a QuerySpec: each sub-query is issued independently on its
// own tier connection and the results are concatenated client-side. Results
// are unordered unless a date merge-sort is requested.
type Executor struct {
	dbs TierDB
}

// NewExecutor creates an executor over the given tier connections.
func NewExecutor(dbs TierDB) *Executor {
	return &Executor{dbs: dbs}
}

// Execute runs all sub-queries in spec and concatenates their rows.
// When sortByDate is true the combined result is merge-sorted by the
// dataset's business-date column.
func (e *Executor) Execute(ctx context.Context, spec QuerySpec, sortByDate bool) ([]Row, error) {
	var combined []Row
	for _, q := range spec.Queries {
		rows, err := e.queryTier(ctx, spec, q)
		if err != nil {
			return nil, fmt.Errorf("execute %s tier query for %s: %w", q.Tier, spec.Dataset.Base, err)
		}
		combined = append(combined, rows...)
	}

	if sortByDate {
		col := spec.Dataset.DateColumn
		sort.SliceStable(combined, func(i, j int) bool {
			return rowDate(combined[i], col).Before(rowDate(combined[j], col))
		})
	}
	return combined, nil
}

// Count sums the row counts of all sub-queries in spec.
func (e *Executor) Count(ctx context.Context, spec QuerySpec) (int64, error) {
	var total int64
	for _, q := range spec.Queries {
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s >= $1 AND %s <= $2",
			q.Table, spec.Dataset.DateColumn, spec.Dataset.DateColumn,
		)
		var n int64
		if err := e.dbs.ForTier(q.Tier).QueryRowContext(ctx, query, q.Start, q.End).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s tier rows for %s: %w", q.Tier, spec.Dataset.Base, err)
		}
		total += n
	}
	return total, nil
}

func (e *Executor) queryTier(ctx context.Context, spec QuerySpec, q TierQuery) ([]Row, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s >= $1 AND %s <= $2",
		spec.Dataset.ColumnList(), q.Table, spec.Dataset.DateColumn, spec.Dataset.DateColumn,
	)

	rows, err := e.dbs.ForTier(q.Tier).QueryContext(ctx, query, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func rowDate(r Row, col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
