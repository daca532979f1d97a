package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/reporting"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/rollup"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/router"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/storage/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reporting API",
	Long: `Serve raw rows, summaries, and the ingest notification hook over HTTP.
The retention cutoff is snapshotted at startup; restart the server (or let
the scheduler cycle it) after the cutoff date rolls.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tiers, err := openTiers()
	if err != nil {
		return err
	}
	defer tiers.Close()

	classifier := newClassifier()
	raw := postgres.NewRawAdapter(tiers)
	store := postgres.NewSummaryAdapter(tiers.Hot)
	engine := rollup.New(raw, store, classifier, cfg.Rollup.WorkerCount)

	handler := reporting.NewHandler(
		router.New(classifier),
		router.NewExecutor(tiers),
		store,
		engine,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := reporting.New(addr, tiers, handler, cfg.Server.Mode)
	return srv.Run(ctx)
}
