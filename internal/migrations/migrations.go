package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

//go:embed hot/*.sql archive/*.sql
var migrationFiles embed.FS

// Run executes all pending migrations for one tier. The two tiers carry
// different schemas: hot owns the live raw tables plus every summary table,
// archive owns only the archived raw tables. With autoMigrate false the
// pending state is logged but nothing is applied.
func Run(db *sql.DB, t tier.Tier, autoMigrate bool) error {
	sub, err := fs.Sub(migrationFiles, string(t))
	if err != nil {
		return fmt.Errorf("no migrations for %s tier: %w", t, err)
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("failed to create %s migration source: %w", t, err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create %s database driver: %w", t, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create %s migrate instance: %w", t, err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get current %s migration version: %w", t, err)
	}

	if dirty {
		slog.Warn("[Migrations] Database is in dirty state - migration was interrupted",
			"tier", t,
			"version", version,
			"action", "attempting automatic recovery",
		)

		// Single baseline migration per tier allows safe
		// force-to-current-version recovery.
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to recover dirty %s migration state at version %d: %w", t, version, err)
		}
		slog.Info("[Migrations] Recovered dirty migration state", "tier", t, "version", version)
	}

	if !autoMigrate {
		slog.Info("[Migrations] Auto-migration disabled, skipping",
			"tier", t,
			"current_version", version,
			"dirty", dirty,
		)
		return nil
	}

	slog.Info("[Migrations] Running database migrations", "tier", t, "current_version", version)

	err = m.Up()
	if err != nil {
		if err == migrate.ErrNoChange {
			slog.Info("[Migrations] Database schema is up to date", "tier", t, "version", version)
			return nil
		}
		return fmt.Errorf("failed to run %s migrations: %w", t, err)
	}

	newVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get updated %s migration version: %w", t, err)
	}

	slog.Info("[Migrations] Database migrations completed",
		"tier", t,
		"from_version", version,
		"to_version", newVersion,
	)

	return nil
}
