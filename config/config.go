package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full rebalancer configuration.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Rebalance RebalanceConfig `yaml:"rebalance"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// BrokerConfig points at the brokerage API.
type BrokerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RebalanceConfig controls the per-account pipeline.
type RebalanceConfig struct {
	Workers              int     `yaml:"workers"`                 // concurrent account pipelines
	PollIntervalSeconds  float64 `yaml:"poll_interval_seconds"`   // fill-status poll cadence
	FillTimeoutSeconds   float64 `yaml:"fill_timeout_seconds"`    // max wait per order
	CancelWindowHours    int     `yaml:"cancel_window_hours"`     // stale-order lookback
	MaxResidualBranches  int     `yaml:"max_residual_branches"`   // allocator search cap
	SkipWhenSymbolsMatch *bool   `yaml:"skip_when_symbols_match"` // diff fast path (historical behavior)
}

// LedgerConfig controls post-fill bookkeeping.
type LedgerConfig struct {
	PlaceTrailingStops bool    `yaml:"place_trailing_stops"`
	TrailPercent       float64 `yaml:"trail_percent"`
	DayTradeLimit      int     `yaml:"day_trade_limit"`
	LookbackDays       int     `yaml:"lookback_business_days"`
}

// StorageConfig controls where portfolios and secrets persist.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config, overlaying .env values where present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval returns the fill poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Rebalance.PollIntervalSeconds * float64(time.Second))
}

// FillTimeout returns the per-order fill deadline as a duration.
func (c *Config) FillTimeout() time.Duration {
	return time.Duration(c.Rebalance.FillTimeoutSeconds * float64(time.Second))
}

// CancelWindow returns the stale-order lookback as a duration.
func (c *Config) CancelWindow() time.Duration {
	return time.Duration(c.Rebalance.CancelWindowHours) * time.Hour
}

// SkipWhenSymbolsMatch resolves the diff fast-path flag, defaulting to the
// historical behavior (on).
func (c *Config) SkipWhenSymbolsMatch() bool {
	if c.Rebalance.SkipWhenSymbolsMatch == nil {
		return true
	}
	return *c.Rebalance.SkipWhenSymbolsMatch
}

// applyEnvOverrides overrides values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
}

// setDefaults fills required values with sensible ones.
func setDefaults(cfg *Config) {
	if cfg.Rebalance.Workers <= 0 {
		cfg.Rebalance.Workers = 4
	}
	if cfg.Rebalance.PollIntervalSeconds <= 0 {
		cfg.Rebalance.PollIntervalSeconds = 1
	}
	if cfg.Rebalance.FillTimeoutSeconds <= 0 {
		cfg.Rebalance.FillTimeoutSeconds = 300
	}
	if cfg.Rebalance.CancelWindowHours <= 0 {
		cfg.Rebalance.CancelWindowHours = 48
	}
	if cfg.Ledger.TrailPercent <= 0 {
		cfg.Ledger.TrailPercent = 5
	}
	if cfg.Ledger.DayTradeLimit <= 0 {
		cfg.Ledger.DayTradeLimit = 3
	}
	if cfg.Ledger.LookbackDays <= 0 {
		cfg.Ledger.LookbackDays = 4
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "rebalancer.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
