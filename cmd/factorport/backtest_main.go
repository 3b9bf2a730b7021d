package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/factorport/internal/backtest"
	"github.com/sawpanic/factorport/internal/config"
	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/obs"
	"github.com/sawpanic/factorport/internal/pipeline"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate the portfolio over history",
		Long:  "Runs the full ranking, weighting, and simulation pipeline over the observation history and writes equity, metrics, and data-quality artifacts.",
		RunE:  runBacktest,
	}
	cmd.Flags().String("observations", "", "Observations CSV (overrides config data.csv_path)")
	cmd.Flags().String("progress", "auto", "Progress output mode (auto|plain|json)")
	return cmd
}

// resolveProgress maps the --progress flag to a concrete output mode: auto
// picks plain on a terminal and json when output is piped.
func resolveProgress(style string, isTTY bool) (string, error) {
	switch style {
	case "auto":
		if isTTY {
			return "plain", nil
		}
		return "json", nil
	case "plain", "json":
		return style, nil
	default:
		return "", fmt.Errorf("unknown progress mode %q (want auto|plain|json)", style)
	}
}

// runSummary is the machine-readable completion record emitted in json mode.
type runSummary struct {
	RunID       string  `json:"run_id"`
	TotalReturn float64 `json:"total_return"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	OutputDir   string  `json:"output_dir"`
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	csvPath, _ := cmd.Flags().GetString("observations")
	if csvPath == "" {
		csvPath = cfg.Data.CSVPath
	}
	if csvPath == "" {
		return fmt.Errorf("no observations source: set --observations or data.csv_path")
	}

	flagStyle, _ := cmd.Flags().GetString("progress")
	style, err := resolveProgress(flagStyle, term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		return err
	}
	if style == "json" {
		// Piped runs get line-delimited JSON instead of the console writer.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	table, err := obs.NewCSVSource(csvPath).Observations(cmd.Context())
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	engine, err := pipeline.NewEngine(cfg.Strategies, cfg.Universe, collector)
	if err != nil {
		return err
	}

	result, err := backtest.NewSimulator(cfg.Backtest, engine).Run(cmd.Context(), table)
	if err != nil {
		return err
	}

	writer := backtest.NewWriter(cfg.Backtest.OutputDir)
	if err := writer.Write(result); err != nil {
		return err
	}
	log.Info().Str("dir", writer.OutputDir()).Msg("Artifacts written")

	summary := runSummary{
		RunID:       result.RunID,
		TotalReturn: result.Metrics.TotalReturn,
		Sharpe:      result.Metrics.Sharpe,
		MaxDrawdown: result.Metrics.MaxDrawdown,
		OutputDir:   writer.OutputDir(),
	}
	if style == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: total return %.2f%%, sharpe %.2f, max drawdown %.2f%%\n",
		summary.RunID,
		summary.TotalReturn*100,
		summary.Sharpe,
		summary.MaxDrawdown*100)
	return nil
}
