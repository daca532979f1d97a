// Package cli implements the posdata command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/config"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/migrations"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/storage/postgres"
)

const appVersion = "0.1.0"

var (
	// Global flags
	cfgFile       string
	logLevel      string
	retentionDays int

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "posdata",
		Short: "Tiered POS data pipeline: rollups, archival, auditing, reporting",
		Long: `posdata manages point-of-sale business records across a hot tier
(recent data, fast storage) and an archive tier (historical data).

It rolls raw records up into six summary levels (hour through year),
moves aged rows into the archive in batched windows, reconciles the
summaries against the raw tiers, and serves both through one API that
hides the tier split from callers.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./posdata.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&retentionDays, "retention-days", 0,
		"override retention window in days")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() error {
	initLogger()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("posdata.yaml"); err == nil {
			path = "posdata.yaml"
		}
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if retentionDays > 0 {
		cfg.Retention.Days = retentionDays
	}
	return nil
}

func initLogger() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// openTiers connects both tiers and applies pending migrations per each
// tier's auto_migrate setting.
func openTiers() (*postgres.Tiers, error) {
	tiers, err := postgres.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(tiers.Hot, tier.Hot, cfg.Hot.AutoMigrate); err != nil {
		tiers.Close()
		return nil, err
	}
	if err := migrations.Run(tiers.Archive, tier.Archive, cfg.Archive.AutoMigrate); err != nil {
		tiers.Close()
		return nil, err
	}
	return tiers, nil
}

// newClassifier snapshots the retention cutoff for one invocation. Every
// component of a run shares this snapshot so a run that crosses midnight
// cannot see two different cutoffs.
func newClassifier() tier.Classifier {
	return tier.NewClassifier(cfg.Retention.Days, time.Now().UTC())
}

func parseDateFlag(name, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

func splitStores(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("posdata %s\n", appVersion)
	},
}
