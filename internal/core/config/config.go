package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/metricdefs"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/tier"
)

// Config is the top-level application config plus resolved metric
// definitions. Retention is read once at startup and never mutated mid-run;
// changing it requires a restart so a single operation never sees two
// different cutoffs.
type Config struct {
	Hot       TierConfig     `koanf:"hot"`
	Archive   TierConfig     `koanf:"archive"`
	Retention RetentionConfig `koanf:"retention"`
	Rollup    RollupConfig   `koanf:"rollup"`
	Archival  ArchivalConfig `koanf:"archival"`
	Audit     AuditConfig    `koanf:"audit"`
	Server    ServerConfig   `koanf:"server"`

	// MetricDefs is populated by Load after parsing definition files.
	MetricDefs []metricdefs.Definition `koanf:"-"`
}

// TierConfig describes one relational endpoint.
type TierConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type RetentionConfig struct {
	Days int `koanf:"days"`
}

type RollupConfig struct {
	WorkerCount int `koanf:"worker_count"`
}

type ArchivalConfig struct {
	BatchDays int  `koanf:"batch_days"`
	Verify    bool `koanf:"verify"`
}

type AuditConfig struct {
	Tolerance string `koanf:"tolerance"` // absolute monetary tolerance, e.g. "0.01"
	ConfigDir string `koanf:"config_dir"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	Mode string `koanf:"mode"` // debug | release
}

// ToleranceAmount parses the audit tolerance into an exact decimal.
func (c AuditConfig) ToleranceAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Tolerance)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Hot.DSN) == "" {
		return fmt.Errorf("hot.dsn is required")
	}
	if strings.TrimSpace(c.Archive.DSN) == "" {
		return fmt.Errorf("archive.dsn is required")
	}
	for name, t := range map[string]TierConfig{"hot": c.Hot, "archive": c.Archive} {
		if t.MaxOpenConns <= 0 {
			return fmt.Errorf("%s.max_open_conns must be > 0", name)
		}
		if t.MaxIdleConns <= 0 {
			return fmt.Errorf("%s.max_idle_conns must be > 0", name)
		}
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	if c.Rollup.WorkerCount <= 0 {
		return fmt.Errorf("rollup.worker_count must be > 0")
	}
	if c.Archival.BatchDays <= 0 {
		return fmt.Errorf("archival.batch_days must be > 0")
	}
	tol, err := c.Audit.ToleranceAmount()
	if err != nil {
		return fmt.Errorf("invalid audit.tolerance %q: %w", c.Audit.Tolerance, err)
	}
	if tol.IsNegative() {
		return fmt.Errorf("audit.tolerance must be >= 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	return nil
}

// Load parses config from defaults + optional file + env, validates it, then
// loads metric definitions for the auditor.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"hot.dsn":                  "",
		"hot.max_open_conns":       10,
		"hot.max_idle_conns":       5,
		"hot.auto_migrate":         true,
		"archive.dsn":              "",
		"archive.max_open_conns":   10,
		"archive.max_idle_conns":   5,
		"archive.auto_migrate":     true,
		"retention.days":           tier.DefaultRetentionDays,
		"rollup.worker_count":      8,
		"archival.batch_days":      30,
		"archival.verify":          true,
		"audit.tolerance":          "0.01",
		"audit.config_dir":         "./config/metrics",
		"server.host":              "0.0.0.0",
		"server.port":              8080,
		"server.mode":              "release",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("POSDATA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "POSDATA_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := metricdefs.NewRepository(cfg.Audit.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric definitions: %w", err)
	}
	cfg.MetricDefs = repo.Definitions()

	return &cfg, nil
}
