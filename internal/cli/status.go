package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/dataset"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show retention cutoff and per-tier row counts",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	tiers, err := openTiers()
	if err != nil {
		return err
	}
	defer tiers.Close()

	classifier := newClassifier()
	cmd.Printf("as of:     %s\n", classifier.AsOf().Format(time.DateOnly))
	cmd.Printf("retention: %d days\n", classifier.RetentionDays())
	cmd.Printf("cutoff:    %s (dates >= cutoff are hot)\n\n", classifier.Cutoff().Format(time.DateOnly))

	raw := postgres.NewRawAdapter(tiers)
	cmd.Printf("%-14s %12s %12s\n", "dataset", "hot", "archive")
	for _, desc := range dataset.All() {
		hotCount, err := raw.CountAll(ctx, tier.Hot, desc)
		if err != nil {
			return err
		}
		archiveCount, err := raw.CountAll(ctx, tier.Archive, desc)
		if err != nil {
			return err
		}
		cmd.Printf("%-14s %12d %12d\n", desc.Base, hotCount, archiveCount)
	}

	// Rows below the cutoff still in the hot tier are the archiver's backlog.
	cmd.Println()
	for _, desc := range dataset.All() {
		min, max, ok, err := raw.MinMaxDates(ctx, tier.Hot, desc, classifier.Cutoff())
		if err != nil {
			return err
		}
		if !ok {
			cmd.Printf("%-14s no rows pending archival\n", desc.Base)
			continue
		}
		cmd.Printf("%-14s pending archival: %s .. %s\n",
			desc.Base, min.Format(time.DateOnly), max.Format(time.DateOnly))
	}
	return nil
}
