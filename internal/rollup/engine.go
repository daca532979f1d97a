package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/metrics"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/period"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/summary"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// RawSource reads raw business records grouped into hour buckets, plus the
// row counts used to tell an empty day apart from a missed hour pass.
type RawSource interface {
	HourlyOrderTotals(ctx context.Context, t tier.Tier, storeID string, start, end time.Time) ([]metrics.HourTotals, error)
	HourlyCategorySales(ctx context.Context, t tier.Tier, storeID string, start, end time.Time) ([]metrics.HourCategorySales, error)
	HourlyWasteCost(ctx context.Context, t tier.Tier, storeID string, start, end time.Time) ([]metrics.HourCost, error)
	CountStoreRange(ctx context.Context, t tier.Tier, desc dataset.Descriptor, storeID string, start, end time.Time) (int64, error)
}

// SummaryStore persists and reads back committed summary records.
type SummaryStore interface {
	Upsert(ctx context.Context, rec summary.Record) error
	Get(ctx context.Context, level period.Level, storeID, periodKey string) (*summary.Record, error)
	Range(ctx context.Context, level period.Level, storeID string, from, toExclusive time.Time) ([]summary.Record, error)
}

// Report summarizes one level pass.
type Report struct {
	RunID     uuid.UUID
	Level     period.Level
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Errors    []error
}

// Engine recomputes summary records level by level. Each level reads only the
// committed level below it (hour reads raw records), so a full pass must walk
// the ladder bottom-up.
type Engine struct {
	raw        RawSource
	store      SummaryStore
	classifier tier.Classifier
	workers    int

	locks keyedMutex
}

// New creates a rollup engine. workers bounds concurrent period units.
func New(raw RawSource, store SummaryStore, classifier tier.Classifier, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		raw:        raw,
		store:      store,
		classifier: classifier,
		workers:    workers,
		locks:      newKeyedMutex(),
	}
}

// RunAll walks the whole ladder over [from, to] for the given stores, hour
// first. It stops after the first level that reports failures: levels above
// would otherwise roll up stale children.
func (e *Engine) RunAll(ctx context.Context, stores []string, from, to time.Time) ([]Report, error) {
	var reports []Report
	for _, level := range period.Ladder {
		rep, err := e.Run(ctx, level, stores, from, to)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
		if rep.Failed > 0 {
			return reports, fmt.Errorf("%s pass had %d failed units, not ascending further", level, rep.Failed)
		}
	}
	return reports, nil
}

// Run recomputes one level for the given stores over [from, to] business
// dates. Units fan out across stores and periods; failures are collected,
// not fail-fast, so one broken period does not starve the rest of the pass.
func (e *Engine) Run(ctx context.Context, level period.Level, stores []string, from, to time.Time) (Report, error) {
	started := time.Now()
	rep := Report{RunID: uuid.New(), Level: level}

	// Hour units cover a whole day each: one grouped query per store-day
	// instead of 24 point queries.
	unitLevel := level
	if level == period.Hour {
		unitLevel = period.Day
	}
	starts := period.Starts(unitLevel, from, to)

	slog.Info("[Rollup] Level pass starting",
		"run_id", rep.RunID,
		"level", level,
		"stores", len(stores),
		"units", len(starts)*len(stores),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, storeID := range stores {
		for _, start := range starts {
			storeID, start := storeID, start
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcome, err := e.runUnit(gctx, level, storeID, start)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					rep.Failed++
					rep.Errors = append(rep.Errors, err)
					slog.Error("[Rollup] Unit failed",
						"run_id", rep.RunID,
						"level", level,
						"store", storeID,
						"period_start", start.Format(time.DateOnly),
						"error", err)
				case outcome == unitSkipped:
					rep.Skipped++
				default:
					rep.Succeeded++
				}
				return nil
			})
		}
	}

	err := g.Wait()
	rep.Duration = time.Since(started)
	slog.Info("[Rollup] Level pass finished",
		"run_id", rep.RunID,
		"level", level,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"skipped", rep.Skipped,
		"duration", rep.Duration)
	return rep, err
}

type unitOutcome int

const (
	unitSucceeded unitOutcome = iota
	unitSkipped
)

func (e *Engine) runUnit(ctx context.Context, level period.Level, storeID string, start time.Time) (unitOutcome, error) {
	if level == period.Hour {
		return e.runHourDay(ctx, storeID, start)
	}
	return e.runAggregate(ctx, level, storeID, start)
}

// runHourDay computes every hour record of one store-day straight from raw
// records. A day lives entirely on one tier, so a single tier query per
// source suffices.
func (e *Engine) runHourDay(ctx context.Context, storeID string, day time.Time) (unitOutcome, error) {
	t := e.classifier.TierFor(day)

	totals, err := e.raw.HourlyOrderTotals(ctx, t, storeID, day, day)
	if err != nil {
		return unitSucceeded, &domerr.RollupComputationError{Level: string(period.Hour), StoreID: storeID, PeriodKey: day.Format(time.DateOnly), Err: err}
	}
	categories, err := e.raw.HourlyCategorySales(ctx, t, storeID, day, day)
	if err != nil {
		return unitSucceeded, &domerr.RollupComputationError{Level: string(period.Hour), StoreID: storeID, PeriodKey: day.Format(time.DateOnly), Err: err}
	}
	waste, err := e.raw.HourlyWasteCost(ctx, t, storeID, day, day)
	if err != nil {
		return unitSucceeded, &domerr.RollupComputationError{Level: string(period.Hour), StoreID: storeID, PeriodKey: day.Format(time.DateOnly), Err: err}
	}

	hours := make(map[time.Time]*metrics.Additive)
	bucket := func(h time.Time) *metrics.Additive {
		h = h.UTC()
		if a, ok := hours[h]; ok {
			return a
		}
		a := &metrics.Additive{}
		hours[h] = a
		return a
	}

	for _, tt := range totals {
		a := bucket(tt.HourStart)
		a.GrossSales = a.GrossSales.Add(tt.GrossSales)
		a.NetSales = a.NetSales.Add(tt.NetSales)
		a.OrderCount += tt.OrderCount
		a.ItemCount += tt.ItemCount
	}
	for _, c := range categories {
		if !metrics.IsFood(c.Category) {
			continue
		}
		a := bucket(c.HourStart)
		a.FoodSales = a.FoodSales.Add(c.Amount)
	}
	for _, w := range waste {
		a := bucket(w.HourStart)
		a.WasteCost = a.WasteCost.Add(w.Cost)
	}

	if len(hours) == 0 {
		return unitSkipped, nil
	}

	for hourStart, add := range hours {
		if err := e.commit(ctx, period.Hour, storeID, hourStart, *add); err != nil {
			return unitSucceeded, err
		}
	}
	return unitSucceeded, nil
}

// runAggregate computes one record at level by summing the committed records
// of the level below it.
func (e *Engine) runAggregate(ctx context.Context, level period.Level, storeID string, start time.Time) (unitOutcome, error) {
	child, ok := level.Child()
	if !ok {
		return unitSucceeded, fmt.Errorf("level %q has no child level", level)
	}
	key := period.Key(level, start)
	end := period.Next(level, start)

	children, err := e.store.Range(ctx, child, storeID, start, end)
	if err != nil {
		return unitSucceeded, &domerr.RollupComputationError{Level: string(level), StoreID: storeID, PeriodKey: key, Err: err}
	}

	if len(children) == 0 {
		if level == period.Day {
			// An hour pass that never ran and a genuinely empty day look
			// identical from the summary side. Only raw records can tell
			// them apart.
			rawRows, err := e.dayRawCount(ctx, storeID, start)
			if err != nil {
				return unitSucceeded, &domerr.RollupComputationError{Level: string(level), StoreID: storeID, PeriodKey: key, Err: err}
			}
			if rawRows > 0 {
				return unitSucceeded, &domerr.RollupComputationError{
					Level:     string(level),
					StoreID:   storeID,
					PeriodKey: key,
					Err:       fmt.Errorf("no hour summaries but %d raw rows exist, run the hour pass first", rawRows),
				}
			}
		}
		return unitSkipped, nil
	}

	var add metrics.Additive
	for _, c := range children {
		add = add.Add(c.Additive)
	}
	if err := e.commit(ctx, level, storeID, start, add); err != nil {
		return unitSucceeded, err
	}
	return unitSucceeded, nil
}

func (e *Engine) dayRawCount(ctx context.Context, storeID string, day time.Time) (int64, error) {
	desc, err := dataset.Get(dataset.KindOrders)
	if err != nil {
		return 0, err
	}
	return e.raw.CountStoreRange(ctx, e.classifier.TierFor(day), desc, storeID, day, day)
}

// commit derives the non-additive metrics against the prior period and
// upserts the record.
func (e *Engine) commit(ctx context.Context, level period.Level, storeID string, start time.Time, add metrics.Additive) error {
	rec := summary.New(level, storeID, start, add)

	unlock := e.locks.lock(lockKey(level, storeID, rec.PeriodKey))
	defer unlock()

	priorStart := period.Prior(level, start)
	prior, err := e.store.Get(ctx, level, storeID, period.Key(level, priorStart))
	if err != nil {
		return &domerr.RollupComputationError{Level: string(level), StoreID: storeID, PeriodKey: rec.PeriodKey, Err: err}
	}
	var priorAdd *metrics.Additive
	if prior != nil {
		priorAdd = &prior.Additive
	}
	rec.Derived = metrics.Derive(add, priorAdd)

	if err := e.store.Upsert(ctx, rec); err != nil {
		return &domerr.RollupComputationError{Level: string(level), StoreID: storeID, PeriodKey: rec.PeriodKey, Err: err}
	}
	return nil
}

func lockKey(level period.Level, storeID, periodKey string) string {
	return string(level) + "|" + storeID + "|" + periodKey
}

// keyedMutex serializes writers of the same (level, store, period) so two
// overlapping passes cannot interleave a read-modify-write on one record.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() keyedMutex {
	return keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
