package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/archive"
)

var (
	archiveDryRun    bool
	archiveBatchDays int
	archiveDataset   string
	archiveVerify    bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move raw rows older than the retention cutoff to the archive tier",
	Long: `Relocate every raw row with a business date older than the retention
cutoff from the hot tier to the archive tier, in bounded date windows.

Each window commits its archive insert before deleting from the hot tier,
so an interrupted run leaves duplicates, never losses, and converges when
rerun. --dry-run reports what each window would move without mutating
either tier.

Example:
  posdata archive --dry-run
  posdata archive --dataset orders --batch-days 7`,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveDryRun, "dry-run", false,
		"report eligible windows without moving anything")
	archiveCmd.Flags().IntVar(&archiveBatchDays, "batch-days", 0,
		"override window size in days")
	archiveCmd.Flags().StringVar(&archiveDataset, "dataset", "",
		"archive a single dataset (orders, order_lines, waste_events)")
	archiveCmd.Flags().BoolVar(&archiveVerify, "verify", false,
		"verify each window after moving it (overrides config)")
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if archiveBatchDays > 0 {
		cfg.Archival.BatchDays = archiveBatchDays
	}
	verify := cfg.Archival.Verify
	if cmd.Flags().Changed("verify") {
		verify = archiveVerify
	}

	tiers, err := openTiers()
	if err != nil {
		return err
	}
	defer tiers.Close()

	mover := archive.New(tiers, newClassifier(), cfg.Archival.BatchDays, verify)
	if archiveDataset != "" {
		if err := mover.Limit(archiveDataset); err != nil {
			return err
		}
	}
	rep, err := mover.Run(ctx, archiveDryRun)
	if err != nil {
		return err
	}

	for _, w := range rep.Windows {
		switch {
		case w.Failed:
			cmd.Printf("%-14s %s .. %s  FAILED\n",
				w.Dataset, w.WindowStart.Format(time.DateOnly), w.WindowEnd.Format(time.DateOnly))
		case w.Skipped:
			cmd.Printf("%-14s %s .. %s  empty, skipped\n",
				w.Dataset, w.WindowStart.Format(time.DateOnly), w.WindowEnd.Format(time.DateOnly))
		case rep.DryRun:
			cmd.Printf("%-14s %s .. %s  would move %d rows\n",
				w.Dataset, w.WindowStart.Format(time.DateOnly), w.WindowEnd.Format(time.DateOnly), w.RowsRead)
		default:
			cmd.Printf("%-14s %s .. %s  inserted=%d ignored=%d deleted=%d\n",
				w.Dataset, w.WindowStart.Format(time.DateOnly), w.WindowEnd.Format(time.DateOnly),
				w.Inserted, w.Ignored, w.Deleted)
		}
	}
	cmd.Printf("cutoff=%s moved=%d windows=%d failed=%d\n",
		rep.Cutoff.Format(time.DateOnly), rep.Moved, len(rep.Windows), rep.Failed)

	if rep.Failed > 0 {
		return fmt.Errorf("archival finished with %d failed windows: %v", rep.Failed, rep.Errors)
	}
	return nil
}
