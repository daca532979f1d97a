package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/audit"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/storage/postgres"
)

var (
	validateStore string
	validateDate  string
	validateDays  int
	validateFull  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Reconcile day summaries against raw-tier sums",
	Long: `Compare each day summary against the raw rows it was computed from,
metric by metric, using the configured monetary tolerance. Without --store
every known store is scanned. The default window is the trailing 7 days;
--date checks a single day and --full walks every date either tier holds.

Exits non-zero when any mismatch is found.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateStore, "store", "", "audit a single store")
	validateCmd.Flags().StringVar(&validateDate, "date", "", "audit a single business date (YYYY-MM-DD)")
	validateCmd.Flags().IntVar(&validateDays, "days", 7, "audit the trailing N days")
	validateCmd.Flags().BoolVar(&validateFull, "full", false, "audit the full date range present in either tier")
	validateCmd.MarkFlagsMutuallyExclusive("date", "days", "full")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tiers, err := openTiers()
	if err != nil {
		return err
	}
	defer tiers.Close()

	classifier := newClassifier()
	raw := postgres.NewRawAdapter(tiers)

	var from, to time.Time
	switch {
	case validateDate != "":
		if from, err = parseDateFlag("date", validateDate); err != nil {
			return err
		}
		to = from
	case validateFull:
		from, to, err = fullDateRange(ctx, raw, classifier)
		if err != nil {
			return err
		}
		if from.IsZero() {
			cmd.Println("No raw rows in either tier, nothing to audit.")
			return nil
		}
	default:
		if validateDays < 1 {
			return fmt.Errorf("--days must be at least 1, got %d", validateDays)
		}
		to = classifier.AsOf()
		from = to.AddDate(0, 0, -(validateDays - 1))
	}

	tolerance, err := cfg.Audit.ToleranceAmount()
	if err != nil {
		return err
	}
	store := postgres.NewSummaryAdapter(tiers.Hot)
	auditor := audit.New(raw, store, classifier, tolerance, cfg.MetricDefs)

	var rep *audit.Report
	if validateStore != "" {
		rep, err = auditor.CheckWindow(ctx, validateStore, from, to)
	} else {
		rep, err = auditor.FullScan(ctx, from, to)
	}
	if err != nil {
		return err
	}

	for _, f := range rep.Findings {
		switch f.Severity {
		case audit.SeverityWarning:
			cmd.Printf("WARN  %s %s %s: %s\n",
				f.StoreID, f.Date.Format(time.DateOnly), f.Metric, f.Message)
		default:
			cmd.Printf("FAIL  %s %s %s: raw=%s summary=%s delta=%s\n",
				f.StoreID, f.Date.Format(time.DateOnly), f.Metric,
				f.Expected.StringFixed(2), f.Actual.StringFixed(2), f.Delta.StringFixed(2))
		}
	}
	for _, e := range rep.Errors {
		cmd.Printf("ERROR %v\n", e)
	}
	cmd.Printf("checked %d store-days, %d findings (%d mismatches), %d errored\n",
		rep.CheckedDays, len(rep.Findings), rep.Mismatches(), rep.Errored)

	if !rep.Passed() {
		return fmt.Errorf("audit found %d mismatches and %d unchecked store-days", rep.Mismatches(), rep.Errored)
	}
	return nil
}

// fullDateRange finds the earliest and latest business dates across every
// dataset in both tiers. Zero times mean both tiers are empty.
func fullDateRange(ctx context.Context, raw *postgres.RawAdapter, classifier tier.Classifier) (from, to time.Time, err error) {
	upper := classifier.AsOf().AddDate(0, 0, 1)
	for _, desc := range dataset.All() {
		for _, t := range []tier.Tier{tier.Archive, tier.Hot} {
			min, max, ok, err := raw.MinMaxDates(ctx, t, desc, upper)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			if !ok {
				continue
			}
			if from.IsZero() || min.Before(from) {
				from = min
			}
			if max.After(to) {
				to = max
			}
		}
	}
	return from, to, nil
}
