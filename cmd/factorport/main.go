package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "factorport"
	version = "v1.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-factor portfolio engine: signals, weights, backtests, live reconciliation",
		Version: version,
		Long: `FactorPort converts per-asset observations into cross-sectional signals,
turns signals into portfolio weights under equal-weight, risk-parity, or
enhanced risk-parity disciplines, and either simulates the portfolio over
history (point-in-time, no lookahead) or reconciles target weights against
live positions under a deadband.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	cobra.OnInitialize(func() {
		level, err := zerolog.ParseLevel(rootCmd.PersistentFlags().Lookup("log-level").Value.String())
		if err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newRebalanceCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
