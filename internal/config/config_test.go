package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorport/internal/weights"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverlaysYAMLOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  csv_path: /data/observations.csv
backtest:
  rebalance_period: 14
live:
  rebalance_period_days: 14
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/observations.csv", cfg.Data.CSVPath)
	assert.Equal(t, 14, cfg.Backtest.RebalancePeriod)

	// Untouched sections keep their defaults.
	assert.Equal(t, 100_000.0, cfg.Backtest.InitialCapital)
	assert.Len(t, cfg.Strategies, 1)
	assert.Equal(t, weights.MethodRiskParity, cfg.Strategies[0].Method)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Backtest, cfg.Backtest)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
universe:
  min_coverage: 1.5
  lookback_days: 90
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		cfg := Default()
		f(&cfg)
		return cfg
	}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no strategies", mutate(func(c *Config) { c.Strategies = nil })},
		{"unknown method", mutate(func(c *Config) { c.Strategies[0].Method = "magic" })},
		{"inverted percentiles", mutate(func(c *Config) { c.Strategies[0].Ranking.LongPercentile = 90 })},
		{"negative allocation", mutate(func(c *Config) { c.Strategies[0].ShortAllocation = -0.5 })},
		{"window too short", mutate(func(c *Config) { c.Strategies[0].WindowDays = 1 })},
		{"bad enhanced bounds", mutate(func(c *Config) {
			c.Strategies[0].Method = weights.MethodEnhancedRP
			c.Strategies[0].Enhanced.MinWeight = 0.9
		})},
		{"min_coverage zero", mutate(func(c *Config) { c.Universe.MinCoverage = 0 })},
		{"min_coverage above one", mutate(func(c *Config) { c.Universe.MinCoverage = 1.01 })},
		{"zero capital", mutate(func(c *Config) { c.Backtest.InitialCapital = 0 })},
		{"zero rebalance period", mutate(func(c *Config) { c.Backtest.RebalancePeriod = 0 })},
		{"zero workers", mutate(func(c *Config) { c.Backtest.Workers = 0 })},
		{"deadband out of range", mutate(func(c *Config) { c.Live.Reconciler.Deadband = 1 })},
		{"zero retry attempts", mutate(func(c *Config) { c.Live.Reconciler.Retry.MaxAttempts = 0 })},
		{"zero live period", mutate(func(c *Config) { c.Live.RebalancePeriodDays = 0 })},
		{"zero postgres timeout", mutate(func(c *Config) { c.Live.Postgres.QueryTimeout = 0 })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestCacheTTLMatchesRebalancePeriod(t *testing.T) {
	live := LiveConfig{RebalancePeriodDays: 7}
	assert.Equal(t, 7*24*time.Hour, live.CacheTTL())
}
