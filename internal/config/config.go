// Package config loads and validates the engine configuration. Invalid
// parameter combinations are rejected here, before any computation begins.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/factorport/internal/backtest"
	"github.com/sawpanic/factorport/internal/httpapi"
	"github.com/sawpanic/factorport/internal/live"
	"github.com/sawpanic/factorport/internal/pipeline"
	"github.com/sawpanic/factorport/internal/rank"
	"github.com/sawpanic/factorport/internal/universe"
	"github.com/sawpanic/factorport/internal/weights"
)

// Config is the full engine configuration.
type Config struct {
	Data       DataConfig                `yaml:"data"`
	Universe   universe.FilterConfig     `yaml:"universe"`
	Strategies []pipeline.StrategyConfig `yaml:"strategies"`
	Backtest   backtest.Config           `yaml:"backtest"`
	Live       LiveConfig                `yaml:"live"`
	Monitor    httpapi.ServerConfig      `yaml:"monitor"`
}

// DataConfig points at the observation source.
type DataConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// LiveConfig extends the reconciler settings with its collaborators.
type LiveConfig struct {
	Reconciler          live.Config    `yaml:"reconciler"`
	RebalancePeriodDays int            `yaml:"rebalance_period_days"` // Weight cache TTL basis
	Redis               RedisConfig    `yaml:"redis"`
	Postgres            PostgresConfig `yaml:"postgres"`
}

// RedisConfig locates the weight cache.
type RedisConfig struct {
	Addr string `yaml:"addr"` // Empty disables caching
	DB   int    `yaml:"db"`
}

// PostgresConfig locates the portfolio store.
type PostgresConfig struct {
	DSN          string        `yaml:"dsn"` // Empty disables persistence
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// Default returns a runnable single-strategy configuration.
func Default() Config {
	return Config{
		Universe: universe.DefaultFilterConfig(),
		Strategies: []pipeline.StrategyConfig{{
			ID:              "momentum",
			Fraction:        1.0,
			Ranking:         rank.DefaultConfig(),
			Method:          weights.MethodRiskParity,
			LongAllocation:  0.5,
			ShortAllocation: 0.5,
			WindowDays:      90,
			Enhanced:        weights.DefaultEnhancedConfig(),
		}},
		Backtest: backtest.DefaultConfig(),
		Live: LiveConfig{
			Reconciler:          live.DefaultConfig(),
			RebalancePeriodDays: 7,
			Postgres:            PostgresConfig{QueryTimeout: 5 * time.Second},
		},
		Monitor: httpapi.DefaultServerConfig(),
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every parameter combination the pipeline depends on.
func (c Config) Validate() error {
	if len(c.Strategies) == 0 {
		return fmt.Errorf("config: no strategies defined")
	}
	for _, s := range c.Strategies {
		if err := s.Ranking.Validate(); err != nil {
			return fmt.Errorf("config: strategy %s: %w", s.ID, err)
		}
		if s.Method == weights.MethodEnhancedRP {
			if err := s.Enhanced.Validate(); err != nil {
				return fmt.Errorf("config: strategy %s: %w", s.ID, err)
			}
		}
		if _, err := weights.New(s.Method, s.Enhanced); err != nil {
			return fmt.Errorf("config: strategy %s: %w", s.ID, err)
		}
		if s.LongAllocation < 0 || s.ShortAllocation < 0 {
			return fmt.Errorf("config: strategy %s: negative side allocation", s.ID)
		}
		if s.WindowDays < 2 {
			return fmt.Errorf("config: strategy %s: window_days must be >= 2", s.ID)
		}
	}

	if c.Universe.MinCoverage <= 0 || c.Universe.MinCoverage > 1 {
		return fmt.Errorf("config: min_coverage %.3f outside (0,1]", c.Universe.MinCoverage)
	}
	if c.Universe.LookbackDays < 1 {
		return fmt.Errorf("config: lookback_days must be >= 1")
	}

	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("config: initial_capital must be positive")
	}
	if c.Backtest.RebalancePeriod < 1 {
		return fmt.Errorf("config: rebalance_period must be >= 1")
	}
	if c.Backtest.AnnualizationDays < 1 {
		return fmt.Errorf("config: annualization_days must be >= 1")
	}
	if c.Backtest.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1")
	}

	if err := c.Live.Reconciler.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Live.RebalancePeriodDays < 1 {
		return fmt.Errorf("config: live rebalance_period_days must be >= 1")
	}
	if c.Live.Postgres.QueryTimeout <= 0 {
		return fmt.Errorf("config: live postgres query_timeout must be positive")
	}
	return nil
}

// CacheTTL returns the live weight cache TTL, equal to the configured
// rebalance period. The period is a single global setting, so strategies
// that rebalance on different schedules share one TTL.
func (c LiveConfig) CacheTTL() time.Duration {
	return time.Duration(c.RebalancePeriodDays) * 24 * time.Hour
}
