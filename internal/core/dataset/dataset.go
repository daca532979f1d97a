package dataset

import (
	"sort"
	"strings"

	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// Kind identifies a registered business-record dataset.
type Kind string

const (
	KindOrders      Kind = "orders"
	KindOrderLines  Kind = "order_lines"
	KindWasteEvents Kind = "waste_events"
)

// Descriptor is the single source of truth for one dataset: physical relation
// names per tier, the natural unique key, the business-date column, and the
// shared column layout. The router and the archival mover both read this, so
// hot and archive schemas cannot drift apart silently.
type Descriptor struct {
	Kind         Kind
	Base         string
	HotTable     string
	ArchiveTable string
	DateColumn   string
	KeyColumns   []string
	Columns      []string
}

// Table returns the physical relation name for the given tier.
func (d Descriptor) Table(t tier.Tier) string {
	if t == tier.Archive {
		return d.ArchiveTable
	}
	return d.HotTable
}

// ColumnList returns the comma-separated shared column list for SELECT and
// INSERT statements.
func (d Descriptor) ColumnList() string {
	return strings.Join(d.Columns, ", ")
}

// KeyColumnList returns the comma-separated natural-key column list for
// ON CONFLICT clauses.
func (d Descriptor) KeyColumnList() string {
	return strings.Join(d.KeyColumns, ", ")
}

// registry maps every known dataset kind to its descriptor. Adding a dataset
// means adding an entry here; nothing else dispatches on table-name strings.
var registry = map[Kind]Descriptor{
	KindOrders: {
		Kind:         KindOrders,
		Base:         "orders",
		HotTable:     "orders_hot",
		ArchiveTable: "orders_archive",
		DateColumn:   "business_date",
		KeyColumns:   []string{"store_id", "business_date", "order_id"},
		Columns: []string{
			"store_id", "business_date", "order_id", "placed_at",
			"order_type", "gross_sales", "net_sales", "tax_amount", "item_count",
		},
	},
	KindOrderLines: {
		Kind:         KindOrderLines,
		Base:         "order_lines",
		HotTable:     "order_lines_hot",
		ArchiveTable: "order_lines_archive",
		DateColumn:   "business_date",
		KeyColumns:   []string{"store_id", "business_date", "order_id", "line_number"},
		Columns: []string{
			"store_id", "business_date", "order_id", "line_number", "placed_at",
			"category", "item_name", "quantity", "unit_price", "line_total",
		},
	},
	KindWasteEvents: {
		Kind:         KindWasteEvents,
		Base:         "waste_events",
		HotTable:     "waste_events_hot",
		ArchiveTable: "waste_events_archive",
		DateColumn:   "business_date",
		KeyColumns:   []string{"store_id", "business_date", "waste_id"},
		Columns: []string{
			"store_id", "business_date", "waste_id", "recorded_at",
			"category", "item_name", "quantity", "cost",
		},
	},
}

// Lookup resolves a dataset base name. Unregistered names are an error,
// never a fallthrough.
func Lookup(base string) (Descriptor, error) {
	d, ok := registry[Kind(base)]
	if !ok {
		return Descriptor{}, &domerr.UnknownDatasetError{Base: base}
	}
	return d, nil
}

// Get resolves a dataset kind.
func Get(k Kind) (Descriptor, error) {
	return Lookup(string(k))
}

// All returns every registered descriptor in stable base-name order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out
}
