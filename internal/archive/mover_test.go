package archive

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/storage/postgres"
)

func mockTiers(t *testing.T) (*postgres.Tiers, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()
	hot, hotMock, err := sqlmock.New()
	require.NoError(t, err)
	archive, archiveMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		hot.Close()
		archive.Close()
	})
	return postgres.NewTiers(hot, archive), hotMock, archiveMock
}

func testClassifier() tier.Classifier {
	// Cutoff lands on 2025-09-02.
	return tier.NewClassifier(90, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
}

// expectNoEligible satisfies one dataset's date-bounds probe with an empty
// result, taking it out of the run.
func expectNoEligible(hotMock sqlmock.Sqlmock, table string) {
	hotMock.ExpectQuery(`SELECT MIN\(business_date\), MAX\(business_date\) FROM ` + table).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(nil, nil))
}

func orderRowValues(day time.Time, orderID string) []driver.Value {
	return []driver.Value{"S1", day, orderID, day.Add(14 * time.Hour), "delivery", "35.00", "31.50", "2.80", 7}
}

func expectOrdersBounds(hotMock sqlmock.Sqlmock, min, max time.Time) {
	hotMock.ExpectQuery(`SELECT MIN\(business_date\), MAX\(business_date\) FROM orders_hot`).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(min, max))
}

func ordersColumns() []string {
	return []string{
		"store_id", "business_date", "order_id", "placed_at",
		"order_type", "gross_sales", "net_sales", "tax_amount", "item_count",
	}
}

func TestMover_MovesWindowInsertThenDelete(t *testing.T) {
	tiers, hotMock, archiveMock := mockTiers(t)

	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	expectNoEligible(hotMock, "order_lines_hot")

	expectOrdersBounds(hotMock, day1, day2)
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	hotMock.ExpectQuery(`SELECT store_id, business_date, order_id, .+ FROM orders_hot`).
		WithArgs(day1, day2).
		WillReturnRows(sqlmock.NewRows(ordersColumns()).
			AddRow(orderRowValues(day1, "O1")...).
			AddRow(orderRowValues(day2, "O2")...))

	archiveMock.ExpectBegin()
	prep := archiveMock.ExpectPrepare(`INSERT INTO orders_archive .+ ON CONFLICT \(store_id, business_date, order_id\) DO NOTHING`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	archiveMock.ExpectCommit()

	hotMock.ExpectBegin()
	hotMock.ExpectExec(`DELETE FROM orders_hot`).
		WithArgs(day1, day2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	hotMock.ExpectCommit()
	archiveMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_archive`).
		WithArgs(day1, day2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	expectNoEligible(hotMock, "waste_events_hot")

	mover := New(tiers, testClassifier(), 30, true)
	rep, err := mover.Run(context.Background(), false)
	require.NoError(t, err)
	require.Zero(t, rep.Failed)
	require.Equal(t, int64(2), rep.Moved)
	require.Len(t, rep.Windows, 1)
	require.Equal(t, "orders", rep.Windows[0].Dataset)
	require.Equal(t, int64(2), rep.Windows[0].Inserted)
	require.Zero(t, rep.Windows[0].Ignored)
	require.Equal(t, int64(2), rep.Windows[0].Deleted)

	require.NoError(t, hotMock.ExpectationsWereMet())
	require.NoError(t, archiveMock.ExpectationsWereMet())
}

func TestMover_RerunConvergesAfterPartialFailure(t *testing.T) {
	tiers, hotMock, archiveMock := mockTiers(t)

	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	expectNoEligible(hotMock, "order_lines_hot")

	// A prior run committed the archive insert but crashed before the hot
	// delete. The rerun finds every row already archived and only has to
	// finish the delete.
	expectOrdersBounds(hotMock, day1, day1)
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	hotMock.ExpectQuery(`SELECT store_id, business_date, order_id, .+ FROM orders_hot`).
		WithArgs(day1, day1).
		WillReturnRows(sqlmock.NewRows(ordersColumns()).
			AddRow(orderRowValues(day1, "O1")...))

	archiveMock.ExpectBegin()
	prep := archiveMock.ExpectPrepare(`INSERT INTO orders_archive`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	archiveMock.ExpectCommit()

	hotMock.ExpectBegin()
	hotMock.ExpectExec(`DELETE FROM orders_hot`).
		WithArgs(day1, day1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	hotMock.ExpectCommit()
	archiveMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_archive`).
		WithArgs(day1, day1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	expectNoEligible(hotMock, "waste_events_hot")

	mover := New(tiers, testClassifier(), 30, true)
	rep, err := mover.Run(context.Background(), false)
	require.NoError(t, err)
	require.Zero(t, rep.Failed)
	require.Len(t, rep.Windows, 1)
	require.Equal(t, int64(1), rep.Windows[0].Ignored)
	require.Zero(t, rep.Windows[0].Inserted)
	require.Equal(t, int64(1), rep.Windows[0].Deleted)

	require.NoError(t, hotMock.ExpectationsWereMet())
	require.NoError(t, archiveMock.ExpectationsWereMet())
}

func TestMover_DryRunOnlyCounts(t *testing.T) {
	tiers, hotMock, archiveMock := mockTiers(t)

	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	expectNoEligible(hotMock, "order_lines_hot")
	expectOrdersBounds(hotMock, day1, day1)
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))
	expectNoEligible(hotMock, "waste_events_hot")

	mover := New(tiers, testClassifier(), 30, true)
	rep, err := mover.Run(context.Background(), true)
	require.NoError(t, err)
	require.True(t, rep.DryRun)
	require.Zero(t, rep.Moved)
	require.Len(t, rep.Windows, 1)
	require.Equal(t, int64(42), rep.Windows[0].RowsRead)
	require.Zero(t, rep.Windows[0].Deleted)

	require.NoError(t, hotMock.ExpectationsWereMet())
	require.NoError(t, archiveMock.ExpectationsWereMet())
}

func TestMover_SplitsEligibleSpanIntoWindows(t *testing.T) {
	tiers, hotMock, archiveMock := mockTiers(t)

	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	day45 := day1.AddDate(0, 0, 44)

	expectNoEligible(hotMock, "order_lines_hot")
	expectOrdersBounds(hotMock, day1, day45)

	// First 30-day window is empty and skipped; the remainder window holds
	// the rows.
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day1.AddDate(0, 0, 29)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1.AddDate(0, 0, 30), day45).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	expectNoEligible(hotMock, "waste_events_hot")

	mover := New(tiers, testClassifier(), 30, true)
	rep, err := mover.Run(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, rep.Windows, 2)
	require.True(t, rep.Windows[0].Skipped)
	require.Equal(t, int64(7), rep.Windows[1].RowsRead)

	require.NoError(t, hotMock.ExpectationsWereMet())
	require.NoError(t, archiveMock.ExpectationsWereMet())
}

func TestMover_FailedWindowDoesNotStopLaterWindows(t *testing.T) {
	tiers, hotMock, archiveMock := mockTiers(t)

	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	day30 := day1.AddDate(0, 0, 29)
	day31 := day1.AddDate(0, 0, 30)
	day45 := day1.AddDate(0, 0, 44)

	expectNoEligible(hotMock, "order_lines_hot")
	expectOrdersBounds(hotMock, day1, day45)

	// Window one: the hot delete removes nothing, so verification finds a
	// leftover row and fails the window.
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day30).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	hotMock.ExpectQuery(`SELECT store_id, business_date, order_id, .+ FROM orders_hot`).
		WithArgs(day1, day30).
		WillReturnRows(sqlmock.NewRows(ordersColumns()).
			AddRow(orderRowValues(day1, "O1")...))

	archiveMock.ExpectBegin()
	prep := archiveMock.ExpectPrepare(`INSERT INTO orders_archive`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	archiveMock.ExpectCommit()

	hotMock.ExpectBegin()
	hotMock.ExpectExec(`DELETE FROM orders_hot`).
		WithArgs(day1, day30).
		WillReturnResult(sqlmock.NewResult(0, 0))
	hotMock.ExpectCommit()
	archiveMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_archive`).
		WithArgs(day1, day30).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day1, day30).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	// Window two still runs and moves its row.
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day31, day45).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	hotMock.ExpectQuery(`SELECT store_id, business_date, order_id, .+ FROM orders_hot`).
		WithArgs(day31, day45).
		WillReturnRows(sqlmock.NewRows(ordersColumns()).
			AddRow(orderRowValues(day31, "O2")...))

	archiveMock.ExpectBegin()
	prep2 := archiveMock.ExpectPrepare(`INSERT INTO orders_archive`)
	prep2.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	archiveMock.ExpectCommit()

	hotMock.ExpectBegin()
	hotMock.ExpectExec(`DELETE FROM orders_hot`).
		WithArgs(day31, day45).
		WillReturnResult(sqlmock.NewResult(0, 1))
	hotMock.ExpectCommit()
	archiveMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_archive`).
		WithArgs(day31, day45).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	hotMock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders_hot`).
		WithArgs(day31, day45).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	expectNoEligible(hotMock, "waste_events_hot")

	mover := New(tiers, testClassifier(), 30, true)
	rep, err := mover.Run(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Errors, 1)
	require.Len(t, rep.Windows, 2)
	require.True(t, rep.Windows[0].Failed)
	require.False(t, rep.Windows[1].Failed)
	require.Equal(t, int64(1), rep.Windows[1].Deleted)
	require.Equal(t, int64(1), rep.Moved)

	var verr *domerr.VerificationFailedError
	require.ErrorAs(t, rep.Errors[0], &verr)
	require.Equal(t, "orders_hot", verr.Table)
	require.Equal(t, int64(1), verr.Remaining)

	require.NoError(t, hotMock.ExpectationsWereMet())
	require.NoError(t, archiveMock.ExpectationsWereMet())
}
