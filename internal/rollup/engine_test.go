package rollup

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/metrics"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/period"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/summary"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func rawKey(storeID string, day time.Time) string {
	return storeID + "|" + day.Format(time.DateOnly)
}

type fakeRaw struct {
	totals map[string][]metrics.HourTotals
	cats   map[string][]metrics.HourCategorySales
	waste  map[string][]metrics.HourCost
	counts map[string]int64
}

func newFakeRaw() *fakeRaw {
	return &fakeRaw{
		totals: make(map[string][]metrics.HourTotals),
		cats:   make(map[string][]metrics.HourCategorySales),
		waste:  make(map[string][]metrics.HourCost),
		counts: make(map[string]int64),
	}
}

func (f *fakeRaw) HourlyOrderTotals(_ context.Context, _ tier.Tier, storeID string, start, _ time.Time) ([]metrics.HourTotals, error) {
	return f.totals[rawKey(storeID, start)], nil
}

func (f *fakeRaw) HourlyCategorySales(_ context.Context, _ tier.Tier, storeID string, start, _ time.Time) ([]metrics.HourCategorySales, error) {
	return f.cats[rawKey(storeID, start)], nil
}

func (f *fakeRaw) HourlyWasteCost(_ context.Context, _ tier.Tier, storeID string, start, _ time.Time) ([]metrics.HourCost, error) {
	return f.waste[rawKey(storeID, start)], nil
}

func (f *fakeRaw) CountStoreRange(_ context.Context, _ tier.Tier, _ dataset.Descriptor, storeID string, start, _ time.Time) (int64, error) {
	return f.counts[rawKey(storeID, start)], nil
}

type fakeStore struct {
	mu   sync.Mutex
	recs map[string]summary.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]summary.Record)}
}

func storeKey(level period.Level, storeID, periodKey string) string {
	return string(level) + "|" + storeID + "|" + periodKey
}

func (f *fakeStore) Upsert(_ context.Context, rec summary.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[storeKey(rec.Level, rec.StoreID, rec.PeriodKey)] = rec
	return nil
}

func (f *fakeStore) Get(_ context.Context, level period.Level, storeID, periodKey string) (*summary.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[storeKey(level, storeID, periodKey)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) Range(_ context.Context, level period.Level, storeID string, from, toExclusive time.Time) ([]summary.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []summary.Record
	for _, rec := range f.recs {
		if rec.Level != level || rec.StoreID != storeID {
			continue
		}
		if rec.PeriodStart.Before(from) || !rec.PeriodStart.Before(toExclusive) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func testClassifier() tier.Classifier {
	return tier.NewClassifier(90, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
}

func seedDay(raw *fakeRaw, storeID string, day time.Time, gross string) {
	h14 := day.Add(14 * time.Hour)
	raw.totals[rawKey(storeID, day)] = []metrics.HourTotals{{
		HourStart:  h14,
		GrossSales: decimal.RequireFromString(gross),
		NetSales:   decimal.RequireFromString(gross).Mul(decimal.RequireFromString("0.9")),
		OrderCount: 3,
		ItemCount:  7,
	}}
	raw.counts[rawKey(storeID, day)] = 3
}

func TestEngine_HourPassBucketsRawRecords(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	h14 := day.Add(14 * time.Hour)
	h15 := day.Add(15 * time.Hour)

	raw.totals[rawKey("S1", day)] = []metrics.HourTotals{
		{HourStart: h14, GrossSales: dec(t, "35.00"), NetSales: dec(t, "31.50"), OrderCount: 3, ItemCount: 7},
		{HourStart: h15, GrossSales: dec(t, "10.00"), NetSales: dec(t, "9.00"), OrderCount: 1, ItemCount: 2},
	}
	raw.cats[rawKey("S1", day)] = []metrics.HourCategorySales{
		{HourStart: h14, Category: "pizza", Amount: dec(t, "20.00")},
		{HourStart: h14, Category: "drinks", Amount: dec(t, "5.00")},
	}
	raw.waste[rawKey("S1", day)] = []metrics.HourCost{
		{HourStart: h14, Cost: dec(t, "1.25")},
	}

	eng := New(raw, store, testClassifier(), 4)
	rep, err := eng.Run(context.Background(), period.Hour, []string{"S1"}, day, day)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Succeeded)
	require.Zero(t, rep.Failed)

	rec, err := store.Get(context.Background(), period.Hour, "S1", "2025-11-15T14")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Additive.GrossSales.Equal(dec(t, "35.00")))
	// drinks is not a food category
	require.True(t, rec.Additive.FoodSales.Equal(dec(t, "20.00")))
	require.True(t, rec.Additive.WasteCost.Equal(dec(t, "1.25")))
	require.Equal(t, int64(3), rec.Additive.OrderCount)

	rec15, err := store.Get(context.Background(), period.Hour, "S1", "2025-11-15T15")
	require.NoError(t, err)
	require.NotNil(t, rec15)
	require.True(t, rec15.Additive.FoodSales.IsZero())
}

func TestEngine_DaySumsItsHours(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	raw.counts[rawKey("S1", day)] = 4

	store.Upsert(context.Background(), summary.New(period.Hour, "S1", day.Add(14*time.Hour), metrics.Additive{
		GrossSales: dec(t, "35.00"), OrderCount: 3, ItemCount: 7,
	}))
	store.Upsert(context.Background(), summary.New(period.Hour, "S1", day.Add(15*time.Hour), metrics.Additive{
		GrossSales: dec(t, "15.00"), OrderCount: 1, ItemCount: 2,
	}))

	eng := New(raw, store, testClassifier(), 4)
	rep, err := eng.Run(context.Background(), period.Day, []string{"S1"}, day, day)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Succeeded)

	rec, err := store.Get(context.Background(), period.Day, "S1", "2025-11-15")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Additive.GrossSales.Equal(dec(t, "50.00")))
	require.Equal(t, int64(4), rec.Additive.OrderCount)
	require.Equal(t, int64(9), rec.Additive.ItemCount)
	require.True(t, rec.Derived.AvgOrderValue.Equal(dec(t, "12.50")))
}

func TestEngine_RerunOverwritesPeriod(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	seedDay(raw, "S1", day, "35.00")

	eng := New(raw, store, testClassifier(), 4)
	_, err := eng.RunAll(context.Background(), []string{"S1"}, day, day)
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), period.Day, "S1", "2025-11-15")
	require.NoError(t, err)
	require.True(t, rec.Additive.GrossSales.Equal(dec(t, "35.00")))

	// A late-arriving correction changes the raw rows; a rerun must fully
	// replace the old values, not stack on top of them.
	seedDay(raw, "S1", day, "50.00")
	_, err = eng.RunAll(context.Background(), []string{"S1"}, day, day)
	require.NoError(t, err)

	rec, err = store.Get(context.Background(), period.Day, "S1", "2025-11-15")
	require.NoError(t, err)
	require.True(t, rec.Additive.GrossSales.Equal(dec(t, "50.00")))

	days, err := store.Range(context.Background(), period.Day, "S1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, days, 1)
}

func TestEngine_DayFailsWhenHoursMissingButRawRowsExist(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	raw.counts[rawKey("S1", day)] = 12

	eng := New(raw, store, testClassifier(), 4)
	rep, err := eng.Run(context.Background(), period.Day, []string{"S1"}, day, day)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Errors, 1)

	var rollupErr *domerr.RollupComputationError
	require.ErrorAs(t, rep.Errors[0], &rollupErr)
	require.Equal(t, "2025-11-15", rollupErr.PeriodKey)
}

func TestEngine_DaySkipsWhenNoDataAtAll(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)

	eng := New(raw, store, testClassifier(), 4)
	rep, err := eng.Run(context.Background(), period.Day, []string{"S1"}, day, day)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Skipped)
	require.Zero(t, rep.Failed)

	rec, err := store.Get(context.Background(), period.Day, "S1", "2025-11-15")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestEngine_GrowthDerivedAgainstPriorPeriod(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	prior := time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)
	day := prior.AddDate(0, 0, 1)
	raw.counts[rawKey("S1", day)] = 1

	priorRec := summary.New(period.Day, "S1", prior, metrics.Additive{GrossSales: dec(t, "40.00"), OrderCount: 4})
	store.Upsert(context.Background(), priorRec)
	store.Upsert(context.Background(), summary.New(period.Hour, "S1", day.Add(14*time.Hour), metrics.Additive{
		GrossSales: dec(t, "50.00"), OrderCount: 5,
	}))

	eng := New(raw, store, testClassifier(), 4)
	rep, err := eng.Run(context.Background(), period.Day, []string{"S1"}, day, day)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Succeeded)

	rec, err := store.Get(context.Background(), period.Day, "S1", "2025-11-15")
	require.NoError(t, err)
	require.True(t, rec.Derived.GrowthPct.Valid)
	require.True(t, rec.Derived.GrowthPct.Decimal.Equal(dec(t, "25.00")))
}

func TestEngine_RunAllAscendsTheWholeLadder(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	seedDay(raw, "S1", day, "35.00")

	eng := New(raw, store, testClassifier(), 4)
	reports, err := eng.RunAll(context.Background(), []string{"S1"}, day, day)
	require.NoError(t, err)
	require.Len(t, reports, len(period.Ladder))

	for level, key := range map[period.Level]string{
		period.Hour:    "2025-11-15T14",
		period.Day:     "2025-11-15",
		period.Week:    "2025-W46",
		period.Month:   "2025-11",
		period.Quarter: "2025-Q4",
		period.Year:    "2025",
	} {
		rec, err := store.Get(context.Background(), level, "S1", key)
		require.NoError(t, err)
		require.NotNil(t, rec, "missing %s record", level)
		require.True(t, rec.Additive.GrossSales.Equal(dec(t, "35.00")), "level %s", level)
	}
}

func TestEngine_RunAllStopsAfterFailedLevel(t *testing.T) {
	raw := newFakeRaw()
	store := newFakeStore()
	day := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	// Raw rows exist but none fall into hour buckets: the hour pass writes
	// nothing, so the day pass must fail and the ladder must stop there.
	raw.counts[rawKey("S1", day)] = 9

	eng := New(raw, store, testClassifier(), 4)
	reports, err := eng.RunAll(context.Background(), []string{"S1"}, day, day)
	require.Error(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, period.Day, reports[1].Level)
	require.Equal(t, 1, reports[1].Failed)
}
