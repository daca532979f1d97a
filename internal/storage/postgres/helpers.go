package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// parseDecimal converts a NUMERIC column scanned as text into an exact
// decimal. NULL aggregates are scanned as empty strings upstream and map to
// zero here.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
