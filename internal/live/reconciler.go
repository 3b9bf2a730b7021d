// Package live reconciles target portfolio weights against currently held
// positions. Trades below the deadband are left unplaced to control
// transaction costs, so live positions drift within the deadband instead of
// tracking the backtest's rebalance-on-schedule weights exactly.
package live

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/weights"
)

// Trade is one reconciliation delta to hand the execution collaborator.
type Trade struct {
	ID              string    `json:"id"`
	Asset           string    `json:"asset"`
	CurrentNotional float64   `json:"current_notional"`
	TargetNotional  float64   `json:"target_notional"`
	DeltaNotional   float64   `json:"delta_notional"`
	Timestamp       time.Time `json:"timestamp"`
}

// PositionSource supplies the live portfolio snapshot: current notional per
// asset plus total capital. A failed fetch aborts reconciliation; the
// reconciler never plans against stale positions.
type PositionSource interface {
	Positions(ctx context.Context) (map[string]float64, float64, error)
}

// TradeSubmitter hands the trade list to the execution collaborator, which
// owns order placement and fill confirmation.
type TradeSubmitter interface {
	Submit(ctx context.Context, trades []Trade) error
}

// TradeRecorder persists emitted trades for audit. Optional.
type TradeRecorder interface {
	Record(ctx context.Context, runID string, trades []Trade) error
}

// Config controls reconciliation behavior and external I/O discipline.
type Config struct {
	Deadband    float64       `yaml:"deadband"`     // Min |delta|/capital to trade (default: 0.03)
	CallTimeout time.Duration `yaml:"call_timeout"` // Per external call (default: 10s)
	Retry       RetryConfig   `yaml:"retry"`
	RatePerSec  float64       `yaml:"rate_per_sec"` // Collaborator call rate limit (default: 5)
}

// DefaultConfig returns default reconciler settings.
func DefaultConfig() Config {
	return Config{
		Deadband:    0.03,
		CallTimeout: 10 * time.Second,
		Retry:       DefaultRetryConfig(),
		RatePerSec:  5,
	}
}

// Validate rejects broken settings at startup.
func (c Config) Validate() error {
	if c.Deadband < 0 || c.Deadband >= 1 {
		return fmt.Errorf("deadband %.4f outside [0,1)", c.Deadband)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	return c.Retry.Validate()
}

// Reconciler turns target weights into a deadbanded trade list and drives the
// external collaborators with timeouts, retries, a rate limiter, and a
// circuit breaker.
type Reconciler struct {
	config    Config
	source    PositionSource
	submitter TradeSubmitter
	recorder  TradeRecorder
	collector *metrics.Collector
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
}

// NewReconciler wires a reconciler. recorder and collector may be nil.
func NewReconciler(config Config, source PositionSource, submitter TradeSubmitter, recorder TradeRecorder, collector *metrics.Collector) *Reconciler {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "execution",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Reconciler{
		config:    config,
		source:    source,
		submitter: submitter,
		recorder:  recorder,
		collector: collector,
		breaker:   breaker,
		limiter:   rate.NewLimiter(rate.Limit(config.RatePerSec), 1),
	}
}

// Plan computes the deadbanded trade list. Pure: calling it twice with
// unchanged inputs yields byte-equal deltas, and once fills bring positions
// to target the next plan is empty.
func (r *Reconciler) Plan(targets weights.Vector, positions map[string]float64, capital float64) []Trade {
	now := time.Now().UTC()
	var trades []Trade
	suppressed := 0

	for _, asset := range unionAssets(targets, positions) {
		target := targets[asset] * capital
		current := positions[asset]
		delta := target - current

		if capital <= 0 || math.Abs(delta)/capital <= r.config.Deadband {
			if delta != 0 {
				suppressed++
			}
			continue
		}
		trades = append(trades, Trade{
			ID:              uuid.NewString(),
			Asset:           asset,
			CurrentNotional: current,
			TargetNotional:  target,
			DeltaNotional:   delta,
			Timestamp:       now,
		})
	}

	if r.collector != nil {
		r.collector.TradesEmitted.Add(float64(len(trades)))
		r.collector.TradesSuppressed.Add(float64(suppressed))
	}
	log.Info().
		Int("trades", len(trades)).
		Int("suppressed", suppressed).
		Float64("deadband", r.config.Deadband).
		Msg("Reconciliation planned")
	return trades
}

// Run fetches positions, plans against the given targets, and submits the
// resulting trades. Exhausted retries on either side are fatal for the run:
// live trading must fail loudly rather than proceed on partial data.
func (r *Reconciler) Run(ctx context.Context, targets weights.Vector) ([]Trade, error) {
	var positions map[string]float64
	var capital float64

	err := r.call(ctx, "fetch_positions", func(ctx context.Context) error {
		var err error
		positions, capital, err = r.source.Positions(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	trades := r.Plan(targets, positions, capital)
	if len(trades) == 0 {
		return nil, nil
	}

	if err := r.call(ctx, "submit_trades", func(ctx context.Context) error {
		return r.submitter.Submit(ctx, trades)
	}); err != nil {
		return nil, fmt.Errorf("submit trades: %w", err)
	}

	if r.recorder != nil {
		runID := uuid.NewString()
		if err := r.recorder.Record(ctx, runID, trades); err != nil {
			// Audit persistence is best-effort; the fills are already in flight.
			log.Error().Err(err).Str("run_id", runID).Msg("Trade audit persistence failed")
		}
	}
	return trades, nil
}

// call applies the shared I/O discipline: rate limit, circuit breaker,
// per-call timeout, bounded exponential backoff.
func (r *Reconciler) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return withRetry(ctx, op, r.config.Retry, r.collector, func(ctx context.Context) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := r.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
			defer cancel()
			return nil, fn(callCtx)
		})
		return err
	})
}

func unionAssets(targets weights.Vector, positions map[string]float64) []string {
	seen := make(map[string]bool, len(targets)+len(positions))
	var assets []string
	for a := range targets {
		if !seen[a] {
			seen[a] = true
			assets = append(assets, a)
		}
	}
	for a := range positions {
		if !seen[a] {
			seen[a] = true
			assets = append(assets, a)
		}
	}
	sort.Strings(assets)
	return assets
}
