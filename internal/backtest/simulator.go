// Package backtest simulates the portfolio over history with point-in-time
// discipline: the weight vector effective on date T is paired with the return
// realized from T to T+1, never earlier.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/obs"
	"github.com/sawpanic/factorport/internal/pipeline"
	"github.com/sawpanic/factorport/internal/schedule"
	"github.com/sawpanic/factorport/internal/weights"
)

// Config controls a backtest run.
type Config struct {
	InitialCapital    float64 `yaml:"initial_capital"`    // Starting equity (default: 100000)
	RebalancePeriod   int     `yaml:"rebalance_period"`   // Trading days between rebalances (default: 7)
	AnnualizationDays int     `yaml:"annualization_days"` // Trading-day convention (default: 365 for crypto)
	Workers           int     `yaml:"workers"`            // Parallel weight computations (default: 4)
	OutputDir         string  `yaml:"output_dir"`         // Artifact directory (default: ./artifacts/backtest)
	RiskFreeRate      float64 `yaml:"risk_free_rate"`     // Annual risk-free rate for Sharpe/Sortino
}

// DefaultConfig returns default backtest settings.
func DefaultConfig() Config {
	return Config{
		InitialCapital:    100_000,
		RebalancePeriod:   7,
		AnnualizationDays: 365,
		Workers:           4,
		OutputDir:         "./artifacts/backtest",
	}
}

// EquityPoint is one step of the realized equity curve. Return is the
// portfolio return realized over the period ending at Date.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
	Value  float64   `json:"value"`
}

// Result is a completed backtest.
type Result struct {
	RunID     string                  `json:"run_id"`
	StartDate time.Time               `json:"start_date"`
	EndDate   time.Time               `json:"end_date"`
	Equity    []EquityPoint           `json:"equity"`
	Metrics   Metrics                 `json:"metrics"`
	Quality   QualitySummary          `json:"quality"`
	Outcomes  []*pipeline.DateOutcome `json:"-"`
}

// Simulator drives the pipeline over history and compounds the result.
type Simulator struct {
	config Config
	engine *pipeline.Engine
}

// NewSimulator creates a backtest simulator over the given engine.
func NewSimulator(config Config, engine *pipeline.Engine) *Simulator {
	return &Simulator{config: config, engine: engine}
}

// Run executes the backtest over the whole table.
func (s *Simulator) Run(ctx context.Context, table *obs.Table) (*Result, error) {
	dates := table.Dates()
	if len(dates) < 2 {
		return nil, fmt.Errorf("backtest needs at least two dates, got %d", len(dates))
	}

	events, err := schedule.Events(dates, s.config.RebalancePeriod)
	if err != nil {
		return nil, err
	}

	log.Info().
		Time("start", dates[0]).
		Time("end", dates[len(dates)-1]).
		Int("dates", len(dates)).
		Int("rebalances", len(events)).
		Msg("Backtest starting")

	atEvents, outcomes, err := s.computeEventVectors(ctx, table, events)
	if err != nil {
		return nil, err
	}
	filled := schedule.ForwardFill(atEvents, dates)

	result := &Result{
		RunID:     uuid.NewString(),
		StartDate: dates[0],
		EndDate:   dates[len(dates)-1],
		Outcomes:  outcomes,
	}

	// Weights effective at dates[i] earn the return recorded at dates[i+1],
	// i.e. the move from T to T+1. This shift is the no-lookahead invariant.
	value := s.config.InitialCapital
	logEquity := math.Log(value)
	for i := 0; i < len(dates)-1; i++ {
		vector, ok := filled[dates[i]]
		if !ok {
			continue
		}
		r := periodReturn(table, vector, dates[i+1])
		logEquity += math.Log1p(r)
		value = math.Exp(logEquity)
		result.Equity = append(result.Equity, EquityPoint{
			Date:   dates[i+1],
			Return: r,
			Value:  value,
		})
	}

	result.Metrics = ComputeMetrics(result.Equity, s.config)
	result.Quality = summarizeQuality(outcomes)
	result.Quality.log()

	log.Info().
		Str("run_id", result.RunID).
		Float64("total_return", result.Metrics.TotalReturn).
		Float64("sharpe", result.Metrics.Sharpe).
		Float64("max_drawdown", result.Metrics.MaxDrawdown).
		Msg("Backtest complete")
	return result, nil
}

// periodReturn applies the held weights to the returns recorded at next.
// Assets with no observation at next contribute nothing for the period; the
// stale weight itself stays in the vector until the next rebalance recomputes it.
func periodReturn(table *obs.Table, vector weights.Vector, next time.Time) float64 {
	r := 0.0
	for asset, w := range vector {
		o, ok := table.At(next, asset)
		if !ok || math.IsNaN(o.Return) {
			continue
		}
		r += w * o.Return
	}
	if r <= -1 {
		// A -100% portfolio period would break log compounding; floor it.
		r = -0.999999
	}
	return r
}
