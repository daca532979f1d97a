package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// TierDB resolves a tier to its live connection. The two tiers share no
// transaction boundary; every cross-tier move is two independent commits.
type TierDB interface {
	ForTier(t tier.Tier) *sql.DB
}

// WindowResult records the outcome of one batch window for one dataset.
type WindowResult struct {
	Dataset     string
	WindowStart time.Time
	WindowEnd   time.Time
	RowsRead    int64
	Inserted    int64
	Ignored     int64
	Deleted     int64
	Skipped     bool
	Failed      bool
}

// Report summarizes one archival run.
type Report struct {
	RunID    uuid.UUID
	Cutoff   time.Time
	DryRun   bool
	Windows  []WindowResult
	Moved    int64
	Failed   int
	Duration time.Duration
	Errors   []error
}

// Mover relocates raw rows older than the retention cutoff from the hot tier
// to the archive tier in bounded date windows. Each window commits the
// archive insert before touching the hot delete, so a crash between the two
// leaves duplicated rows, never lost ones; the insert-or-ignore key makes the
// rerun converge.
type Mover struct {
	db         TierDB
	classifier tier.Classifier
	batchDays  int
	verify     bool
	only       []dataset.Descriptor
}

// New creates a mover. batchDays bounds each window; non-positive falls back
// to 30.
func New(db TierDB, classifier tier.Classifier, batchDays int, verify bool) *Mover {
	if batchDays <= 0 {
		batchDays = 30
	}
	return &Mover{db: db, classifier: classifier, batchDays: batchDays, verify: verify}
}

// Limit restricts the mover to a single registered dataset.
func (m *Mover) Limit(base string) error {
	desc, err := dataset.Lookup(base)
	if err != nil {
		return err
	}
	m.only = []dataset.Descriptor{desc}
	return nil
}

// Run moves every eligible window of every registered dataset. With dryRun
// set it only counts what each window would move and mutates nothing.
// A failed window is logged, tallied, and skipped; the run continues with
// the next window. Windows cover disjoint date ranges, so skipping one
// never affects the rows of another, and the next run retries it.
func (m *Mover) Run(ctx context.Context, dryRun bool) (*Report, error) {
	started := time.Now()
	rep := &Report{
		RunID:  uuid.New(),
		Cutoff: m.classifier.Cutoff(),
		DryRun: dryRun,
	}

	slog.Info("[Archiver] Run starting",
		"run_id", rep.RunID,
		"cutoff", rep.Cutoff.Format(time.DateOnly),
		"batch_days", m.batchDays,
		"dry_run", dryRun)

	targets := m.only
	if len(targets) == 0 {
		targets = dataset.All()
	}
	for _, desc := range targets {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := m.runDataset(ctx, rep, desc, dryRun); err != nil {
			if ctx.Err() != nil {
				return rep, err
			}
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			slog.Error("[Archiver] Dataset scan failed",
				"run_id", rep.RunID,
				"dataset", desc.Base,
				"error", err)
		}
	}

	rep.Duration = time.Since(started)
	slog.Info("[Archiver] Run finished",
		"run_id", rep.RunID,
		"windows", len(rep.Windows),
		"moved", rep.Moved,
		"failed", rep.Failed,
		"dry_run", dryRun,
		"duration", rep.Duration)
	return rep, nil
}

func (m *Mover) runDataset(ctx context.Context, rep *Report, desc dataset.Descriptor, dryRun bool) error {
	minDate, maxDate, ok, err := m.hotDateBounds(ctx, desc, rep.Cutoff)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("[Archiver] Nothing eligible",
			"run_id", rep.RunID,
			"dataset", desc.Base)
		return nil
	}

	lastEligible := rep.Cutoff.AddDate(0, 0, -1)
	if maxDate.Before(lastEligible) {
		lastEligible = maxDate
	}

	for start := minDate; !start.After(lastEligible); start = start.AddDate(0, 0, m.batchDays) {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start.AddDate(0, 0, m.batchDays-1)
		if end.After(lastEligible) {
			end = lastEligible
		}

		res, err := m.moveWindow(ctx, desc, start, end, dryRun)
		if res != nil {
			res.Failed = err != nil
			rep.Windows = append(rep.Windows, *res)
			rep.Moved += res.Deleted
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			slog.Error("[Archiver] Window failed",
				"run_id", rep.RunID,
				"dataset", desc.Base,
				"window_start", start.Format(time.DateOnly),
				"window_end", end.Format(time.DateOnly),
				"error", err)
		}
	}
	return nil
}

func (m *Mover) hotDateBounds(ctx context.Context, desc dataset.Descriptor, cutoff time.Time) (min, max time.Time, ok bool, err error) {
	query := fmt.Sprintf(`SELECT MIN(%[1]s), MAX(%[1]s) FROM %[2]s WHERE %[1]s < $1`,
		desc.DateColumn, desc.HotTable)
	var minN, maxN sql.NullTime
	if err := m.db.ForTier(tier.Hot).QueryRowContext(ctx, query, cutoff).Scan(&minN, &maxN); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("date bounds for %s: %w", desc.Base, err)
	}
	if !minN.Valid || !maxN.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return tier.DateOnly(minN.Time), tier.DateOnly(maxN.Time), true, nil
}

// moveWindow relocates one window. Order matters: archive insert commits
// first, hot delete second, verification last.
func (m *Mover) moveWindow(ctx context.Context, desc dataset.Descriptor, start, end time.Time, dryRun bool) (*WindowResult, error) {
	res := &WindowResult{Dataset: desc.Base, WindowStart: start, WindowEnd: end}

	count, err := m.countHotWindow(ctx, desc, start, end)
	if err != nil {
		return res, err
	}
	if count == 0 {
		res.Skipped = true
		return res, nil
	}
	res.RowsRead = count

	if dryRun {
		slog.Info("[Archiver] Window (dry run)",
			"dataset", desc.Base,
			"window_start", start.Format(time.DateOnly),
			"window_end", end.Format(time.DateOnly),
			"rows", count)
		return res, nil
	}

	rows, err := m.readHotWindow(ctx, desc, start, end)
	if err != nil {
		return res, err
	}
	res.RowsRead = int64(len(rows))

	inserted, ignored, err := m.insertArchive(ctx, desc, rows)
	if err != nil {
		return res, err
	}
	res.Inserted = inserted
	res.Ignored = ignored
	if ignored > 0 {
		// Rows already present in the archive: the usual cause is a rerun
		// after a crash between the two commits.
		slog.Warn("[Archiver] Duplicate rows ignored",
			"dataset", desc.Base,
			"window_start", start.Format(time.DateOnly),
			"window_end", end.Format(time.DateOnly),
			"ignored", ignored)
	}

	deleted, err := m.deleteHotWindow(ctx, desc, start, end)
	if err != nil {
		return res, err
	}
	res.Deleted = deleted

	if m.verify {
		archived, err := m.countArchiveWindow(ctx, desc, start, end)
		if err != nil {
			return res, err
		}
		if archived < res.RowsRead {
			return res, fmt.Errorf("archive verification failed for %s [%s, %s]: %d rows archived, expected at least %d",
				desc.ArchiveTable, start.Format(time.DateOnly), end.Format(time.DateOnly), archived, res.RowsRead)
		}
		remaining, err := m.countHotWindow(ctx, desc, start, end)
		if err != nil {
			return res, err
		}
		if remaining > 0 {
			return res, &domerr.VerificationFailedError{
				Table:       desc.HotTable,
				WindowStart: start,
				WindowEnd:   end,
				Remaining:   remaining,
			}
		}
	}

	slog.Info("[Archiver] Window moved",
		"dataset", desc.Base,
		"window_start", start.Format(time.DateOnly),
		"window_end", end.Format(time.DateOnly),
		"inserted", inserted,
		"ignored", ignored,
		"deleted", deleted)
	return res, nil
}

func (m *Mover) countHotWindow(ctx context.Context, desc dataset.Descriptor, start, end time.Time) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s >= $1 AND %s <= $2`,
		desc.HotTable, desc.DateColumn, desc.DateColumn)
	var n int64
	if err := m.db.ForTier(tier.Hot).QueryRowContext(ctx, query, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("count hot window for %s: %w", desc.Base, err)
	}
	return n, nil
}

func (m *Mover) countArchiveWindow(ctx context.Context, desc dataset.Descriptor, start, end time.Time) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s >= $1 AND %s <= $2`,
		desc.ArchiveTable, desc.DateColumn, desc.DateColumn)
	var n int64
	if err := m.db.ForTier(tier.Archive).QueryRowContext(ctx, query, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive window for %s: %w", desc.Base, err)
	}
	return n, nil
}

func (m *Mover) readHotWindow(ctx context.Context, desc dataset.Descriptor, start, end time.Time) ([][]interface{}, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s >= $1 AND %s <= $2`,
		desc.ColumnList(), desc.HotTable, desc.DateColumn, desc.DateColumn)
	rows, err := m.db.ForTier(tier.Hot).QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("read hot window for %s: %w", desc.Base, err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(desc.Columns))
		ptrs := make([]interface{}, len(desc.Columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan hot window row for %s: %w", desc.Base, err)
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// insertArchive writes the window's rows into the archive tier in one
// transaction, ignoring rows whose natural key is already there.
func (m *Mover) insertArchive(ctx context.Context, desc dataset.Descriptor, rows [][]interface{}) (inserted, ignored int64, err error) {
	tx, err := m.db.ForTier(tier.Archive).BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin archive tx for %s: %w", desc.Base, err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(desc.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING`,
		desc.ArchiveTable, desc.ColumnList(), strings.Join(placeholders, ", "), desc.KeyColumnList())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare archive insert for %s: %w", desc.Base, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		result, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, 0, fmt.Errorf("insert archive row for %s: %w", desc.Base, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("rows affected for %s: %w", desc.Base, err)
		}
		if n == 0 {
			ignored++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit archive tx for %s: %w", desc.Base, err)
	}
	return inserted, ignored, nil
}

func (m *Mover) deleteHotWindow(ctx context.Context, desc dataset.Descriptor, start, end time.Time) (int64, error) {
	tx, err := m.db.ForTier(tier.Hot).BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin hot tx for %s: %w", desc.Base, err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s >= $1 AND %s <= $2`,
		desc.HotTable, desc.DateColumn, desc.DateColumn)
	result, err := tx.ExecContext(ctx, query, start, end)
	if err != nil {
		return 0, fmt.Errorf("delete hot window for %s: %w", desc.Base, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for %s: %w", desc.Base, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit hot tx for %s: %w", desc.Base, err)
	}
	return deleted, nil
}
