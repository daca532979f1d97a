package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // Register postgres driver

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/config"
	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

const connectPingTimeout = 5 * time.Second

// Tiers holds the two independent tier connections. They may point at
// different databases or different servers entirely; nothing here assumes a
// shared transaction boundary across them.
type Tiers struct {
	Hot     *sql.DB
	Archive *sql.DB
}

// Open connects both tiers with their pool settings and verifies
// reachability. An unreachable tier is a ConnectionError.
func Open(cfg *config.Config) (*Tiers, error) {
	hot, err := openTier(string(tier.Hot), cfg.Hot)
	if err != nil {
		return nil, err
	}
	archive, err := openTier(string(tier.Archive), cfg.Archive)
	if err != nil {
		hot.Close()
		return nil, err
	}
	return &Tiers{Hot: hot, Archive: archive}, nil
}

// NewTiers wraps existing connections; used by tests with sqlmock pairs.
func NewTiers(hot, archive *sql.DB) *Tiers {
	return &Tiers{Hot: hot, Archive: archive}
}

func openTier(name string, tc config.TierConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", tc.DSN)
	if err != nil {
		return nil, &domerr.ConnectionError{Tier: name, Err: fmt.Errorf("open: %w", err)}
	}

	db.SetMaxOpenConns(tc.MaxOpenConns)
	db.SetMaxIdleConns(tc.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &domerr.ConnectionError{Tier: name, Err: err}
	}

	slog.Info("[Postgres] Tier connected",
		"tier", name,
		"max_open_conns", tc.MaxOpenConns,
		"max_idle_conns", tc.MaxIdleConns)
	return db, nil
}

// ForTier resolves a tier to its connection.
func (t *Tiers) ForTier(tr tier.Tier) *sql.DB {
	if tr == tier.Archive {
		return t.Archive
	}
	return t.Hot
}

// Close closes both tier connections.
func (t *Tiers) Close() {
	if t.Hot != nil {
		t.Hot.Close()
	}
	if t.Archive != nil {
		t.Archive.Close()
	}
}
