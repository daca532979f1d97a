// Package router builds tiered query specifications for arbitrary business
// date ranges, splitting at the retention cutoff so each logical row is
// visible in exactly one tier's result.
package router

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// TierQuery is one bounded query against a single tier.
type TierQuery struct {
	Tier  tier.Tier
	Table string
	Start time.Time
	End   time.Time
}

// QuerySpec describes one or two tier queries whose results the caller
// combines by concatenation. The underlying store is never asked to UNION
// across connections; each sub-query executes and cancels independently.
type QuerySpec struct {
	Dataset dataset.Descriptor
	Queries []TierQuery
	TraceID string
}

// Router maps date ranges onto tier queries. Read-only: it never executes
// anything and never retries; execution belongs to the caller's transport.
type Router struct {
	classifier tier.Classifier
}

// New creates a router bound to one run's classifier snapshot.
func New(c tier.Classifier) *Router {
	return &Router{classifier: c}
}

// Classifier returns the router's cutoff snapshot.
func (r *Router) Classifier() tier.Classifier { return r.classifier }

// Route builds the query spec for [start, end] (inclusive business dates).
//
//	end < cutoff           -> archive only
//	start >= cutoff        -> hot only
//	otherwise              -> archive [start, cutoff-1] + hot [cutoff, end]
func (r *Router) Route(base string, start, end time.Time) (QuerySpec, error) {
	desc, err := dataset.Lookup(base)
	if err != nil {
		return QuerySpec{}, err
	}

	start = tier.DateOnly(start)
	end = tier.DateOnly(end)
	if start.After(end) {
		return QuerySpec{}, &domerr.InvalidRangeError{Start: start, End: end}
	}

	cutoff := r.classifier.Cutoff()
	spec := QuerySpec{Dataset: desc, TraceID: uuid.NewString()}

	switch {
	case end.Before(cutoff):
		spec.Queries = []TierQuery{
			{Tier: tier.Archive, Table: desc.ArchiveTable, Start: start, End: end},
		}
	case !start.Before(cutoff):
		spec.Queries = []TierQuery{
			{Tier: tier.Hot, Table: desc.HotTable, Start: start, End: end},
		}
	default:
		spec.Queries = []TierQuery{
			{Tier: tier.Archive, Table: desc.ArchiveTable, Start: start, End: cutoff.AddDate(0, 0, -1)},
			{Tier: tier.Hot, Table: desc.HotTable, Start: cutoff, End: end},
		}
	}

	tiers := make([]string, 0, len(spec.Queries))
	for _, q := range spec.Queries {
		tiers = append(tiers, string(q.Tier))
	}
	slog.Debug("[Router] Routed query",
		"trace_id", spec.TraceID,
		"dataset", desc.Base,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"cutoff", cutoff.Format("2006-01-02"),
		"tiers", tiers,
	)

	return spec, nil
}
