package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/metricdefs"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/period"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/summary"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// RawSource reads raw-tier truth for reconciliation.
type RawSource interface {
	SumColumn(ctx context.Context, t tier.Tier, desc dataset.Descriptor, column, storeID string, start, end time.Time) (decimal.Decimal, error)
	CountStoreRange(ctx context.Context, t tier.Tier, desc dataset.Descriptor, storeID string, start, end time.Time) (int64, error)
	ListStores(ctx context.Context) ([]string, error)
}

// SummaryStore reads committed summary records.
type SummaryStore interface {
	Get(ctx context.Context, level period.Level, storeID, periodKey string) (*summary.Record, error)
}

// Severity classifies a finding. Warnings are informational; mismatches fail
// the audit.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityMismatch Severity = "mismatch"
)

// Finding is one observed discrepancy.
type Finding struct {
	Severity Severity
	Metric   string
	Dataset  string
	StoreID  string
	Date     time.Time
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Delta    decimal.Decimal
	Message  string
}

// Report is the outcome of one audit run. Passed means no mismatch findings
// and no store-days that could not be checked; warnings alone do not fail it.
type Report struct {
	RunID       uuid.UUID
	CheckedDays int
	Errored     int
	Findings    []Finding
	Errors      []error
	Duration    time.Duration
}

// Passed reports whether the run found no mismatches and checked every
// store-day it was asked to.
func (r *Report) Passed() bool {
	if r.Errored > 0 {
		return false
	}
	for _, f := range r.Findings {
		if f.Severity == SeverityMismatch {
			return false
		}
	}
	return true
}

// Mismatches counts the findings that fail the audit.
func (r *Report) Mismatches() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityMismatch {
			n++
		}
	}
	return n
}

// Auditor reconciles day summaries against raw-tier sums. Sums are compared
// with a small absolute tolerance since the raw tiers carry sub-cent tax
// fractions that the summaries round away.
type Auditor struct {
	raw        RawSource
	store      SummaryStore
	classifier tier.Classifier
	tolerance  decimal.Decimal
	defs       []metricdefs.Definition
}

// New creates an auditor over the given metric definitions.
func New(raw RawSource, store SummaryStore, classifier tier.Classifier, tolerance decimal.Decimal, defs []metricdefs.Definition) *Auditor {
	if len(defs) == 0 {
		defs = metricdefs.Defaults()
	}
	return &Auditor{raw: raw, store: store, classifier: classifier, tolerance: tolerance, defs: defs}
}

// CheckWindow audits one store over a closed date range.
func (a *Auditor) CheckWindow(ctx context.Context, storeID string, from, to time.Time) (*Report, error) {
	started := time.Now()
	rep := &Report{RunID: uuid.New()}

	for _, day := range period.Starts(period.Day, from, to) {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		a.auditDay(ctx, rep, storeID, day)
	}

	rep.Duration = time.Since(started)
	slog.Info("[Auditor] Window checked",
		"run_id", rep.RunID,
		"store", storeID,
		"days", rep.CheckedDays,
		"errored", rep.Errored,
		"findings", len(rep.Findings),
		"mismatches", rep.Mismatches(),
		"duration", rep.Duration)
	return rep, nil
}

// FullScan audits every known store over a closed date range.
func (a *Auditor) FullScan(ctx context.Context, from, to time.Time) (*Report, error) {
	started := time.Now()
	rep := &Report{RunID: uuid.New()}

	stores, err := a.raw.ListStores(ctx)
	if err != nil {
		return rep, err
	}

	for _, storeID := range stores {
		for _, day := range period.Starts(period.Day, from, to) {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			a.auditDay(ctx, rep, storeID, day)
		}
	}

	rep.Duration = time.Since(started)
	slog.Info("[Auditor] Full scan done",
		"run_id", rep.RunID,
		"stores", len(stores),
		"days_checked", rep.CheckedDays,
		"errored", rep.Errored,
		"findings", len(rep.Findings),
		"mismatches", rep.Mismatches(),
		"duration", rep.Duration)
	return rep, nil
}

// auditDay wraps checkDay so a query failure on one store-day is tallied
// and the scan moves on instead of aborting the run.
func (a *Auditor) auditDay(ctx context.Context, rep *Report, storeID string, day time.Time) {
	if err := a.checkDay(ctx, rep, storeID, day); err != nil {
		rep.Errored++
		rep.Errors = append(rep.Errors, fmt.Errorf("check %s on %s: %w", storeID, day.Format(time.DateOnly), err))
		slog.Error("[Auditor] Store-day check failed",
			"run_id", rep.RunID,
			"store", storeID,
			"date", day.Format(time.DateOnly),
			"error", err)
		return
	}
	rep.CheckedDays++
}

// checkDay reconciles one store-day: every metric definition's raw sum
// against the committed day summary.
func (a *Auditor) checkDay(ctx context.Context, rep *Report, storeID string, day time.Time) error {
	t := a.classifier.TierFor(day)
	dayKey := period.Key(period.Day, day)

	rec, err := a.store.Get(ctx, period.Day, storeID, dayKey)
	if err != nil {
		return err
	}

	for _, def := range a.defs {
		desc, err := dataset.Lookup(def.Dataset)
		if err != nil {
			return err
		}

		count, err := a.raw.CountStoreRange(ctx, t, desc, storeID, day, day)
		if err != nil {
			return err
		}
		if count == 0 {
			rep.Findings = append(rep.Findings, Finding{
				Severity: SeverityWarning,
				Metric:   def.Name,
				Dataset:  def.Dataset,
				StoreID:  storeID,
				Date:     day,
				Message:  fmt.Sprintf("no %s rows on %s tier for this day", def.Dataset, t),
			})
			continue
		}

		rawSum, err := a.raw.SumColumn(ctx, t, desc, def.Column, storeID, day, day)
		if err != nil {
			return err
		}

		var summarized decimal.Decimal
		if rec != nil {
			summarized, err = summaryMetric(rec, def.Summary)
			if err != nil {
				return err
			}
		}

		delta := rawSum.Sub(summarized).Abs()
		if delta.GreaterThan(a.tolerance) {
			msg := "summary diverges from raw sum"
			if rec == nil {
				msg = "raw rows exist but no day summary is committed"
			}
			rep.Findings = append(rep.Findings, Finding{
				Severity: SeverityMismatch,
				Metric:   def.Name,
				Dataset:  def.Dataset,
				StoreID:  storeID,
				Date:     day,
				Expected: rawSum,
				Actual:   summarized,
				Delta:    delta,
				Message:  msg,
			})
			slog.Warn("[Auditor] Mismatch",
				"metric", def.Name,
				"store", storeID,
				"date", dayKey,
				"expected", rawSum,
				"actual", summarized,
				"delta", delta)
		}
	}
	return nil
}

func summaryMetric(rec *summary.Record, name string) (decimal.Decimal, error) {
	switch name {
	case metricdefs.SummaryGrossSales:
		return rec.Additive.GrossSales, nil
	case metricdefs.SummaryNetSales:
		return rec.Additive.NetSales, nil
	case metricdefs.SummaryWasteCost:
		return rec.Additive.WasteCost, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported summary metric %q", name)
}
