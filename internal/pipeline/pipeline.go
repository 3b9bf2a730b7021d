// Package pipeline wires universe filtering, cross-sectional ranking, and
// weight calculation into per-date target weights. The backtest simulator and
// the live reconciler both consume this package, which is what guarantees
// backtest/live parity at the signal boundary.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/obs"
	"github.com/sawpanic/factorport/internal/portfolio"
	"github.com/sawpanic/factorport/internal/rank"
	"github.com/sawpanic/factorport/internal/universe"
	"github.com/sawpanic/factorport/internal/weights"
)

// StrategyConfig describes one constituent strategy.
type StrategyConfig struct {
	ID              string                 `yaml:"id"`
	Fraction        float64                `yaml:"fraction"`
	Pinned          bool                   `yaml:"pinned"`
	Ranking         rank.Config            `yaml:"ranking"`
	Method          string                 `yaml:"method"`
	LongAllocation  float64                `yaml:"long_allocation"`
	ShortAllocation float64                `yaml:"short_allocation"`
	WindowDays      int                    `yaml:"window_days"` // Trailing return window for covariance
	Enhanced        weights.EnhancedConfig `yaml:"enhanced"`
}

// Strategy is a runnable constituent strategy.
type Strategy struct {
	cfg    StrategyConfig
	method weights.Method
}

// NewStrategy validates the configuration and resolves the weighting method.
func NewStrategy(cfg StrategyConfig) (*Strategy, error) {
	if err := cfg.Ranking.Validate(); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
	}
	if cfg.Method == weights.MethodEnhancedRP {
		if err := cfg.Enhanced.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
		}
	}
	method, err := weights.New(cfg.Method, cfg.Enhanced)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
	}
	return &Strategy{cfg: cfg, method: method}, nil
}

// StrategyOutcome records what happened for one (strategy, date) computation.
// Degraded data never aborts the run; it is reported here instead.
type StrategyOutcome struct {
	Strategy   string               `json:"strategy"`
	Date       time.Time            `json:"date"`
	Signals    []rank.Signal        `json:"signals,omitempty"`
	Exclusions []universe.Exclusion `json:"exclusions,omitempty"`
	Report     *weights.Report      `json:"report,omitempty"`
	Degenerate bool                 `json:"degenerate"`
}

// Active reports whether the strategy produced any signal for the date.
func (o *StrategyOutcome) Active() bool {
	return !o.Degenerate && len(o.Signals) > 0
}

// WeightsFor computes the strategy's weight vector for one date from
// observations available through that date only.
func (s *Strategy) WeightsFor(filter *universe.Filter, table *obs.Table, date time.Time) (weights.Vector, *StrategyOutcome) {
	outcome := &StrategyOutcome{Strategy: s.cfg.ID, Date: date}

	eligible, excluded := filter.Eligible(table, date)
	outcome.Exclusions = excluded

	signals, err := rank.Rank(eligible, s.cfg.Ranking)
	if err != nil {
		if errors.Is(err, rank.ErrDegenerateUniverse) {
			outcome.Degenerate = true
			return nil, outcome
		}
		// Rank only fails on degeneracy today; anything else is still local.
		log.Warn().Err(err).Str("strategy", s.cfg.ID).Time("date", date).Msg("Ranking skipped")
		outcome.Degenerate = true
		return nil, outcome
	}
	outcome.Signals = signals

	long, short := rank.Split(signals)
	req := weights.Request{
		Date:            date,
		Long:            long,
		Short:           short,
		LongAllocation:  s.cfg.LongAllocation,
		ShortAllocation: s.cfg.ShortAllocation,
		Volatility:      volatilities(table, date, long, short),
		Returns:         returnWindows(table, date, s.cfg.WindowDays, long, short),
	}

	vector, report, err := s.method.Weights(req)
	if err != nil {
		// Only structurally invalid requests end up here; treat as inactive.
		log.Warn().Err(err).Str("strategy", s.cfg.ID).Time("date", date).Msg("Weighting skipped")
		outcome.Degenerate = true
		return nil, outcome
	}
	outcome.Report = report
	return vector, outcome
}

func volatilities(table *obs.Table, date time.Time, sides ...[]string) map[string]float64 {
	out := make(map[string]float64)
	for _, side := range sides {
		for _, asset := range side {
			if o, ok := table.At(date, asset); ok {
				out[asset] = o.Volatility
			}
		}
	}
	return out
}

func returnWindows(table *obs.Table, date time.Time, window int, sides ...[]string) map[string][]float64 {
	out := make(map[string][]float64)
	for _, side := range sides {
		for _, asset := range side {
			out[asset] = table.ReturnSeries(asset, date, window)
		}
	}
	return out
}

// Engine runs all constituent strategies and combines their vectors under the
// configured allocations.
type Engine struct {
	strategies []*Strategy
	allocs     []portfolio.StrategyAllocation
	filter     *universe.Filter
	collector  *metrics.Collector
}

// NewEngine builds the engine from strategy configurations.
func NewEngine(cfgs []StrategyConfig, filterCfg universe.FilterConfig, collector *metrics.Collector) (*Engine, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}
	strategies := make([]*Strategy, 0, len(cfgs))
	allocs := make([]portfolio.StrategyAllocation, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := NewStrategy(cfg)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
		allocs = append(allocs, portfolio.StrategyAllocation{ID: cfg.ID, Fraction: cfg.Fraction, Pinned: cfg.Pinned})
	}
	if err := portfolio.ValidateAllocations(allocs); err != nil {
		return nil, err
	}
	return &Engine{
		strategies: strategies,
		allocs:     allocs,
		filter:     universe.NewFilter(filterCfg),
		collector:  collector,
	}, nil
}

// DateOutcome aggregates all strategies' outcomes for one date.
type DateOutcome struct {
	Date       time.Time          `json:"date"`
	Strategies []*StrategyOutcome `json:"strategies"`
}

// StrategyIDs lists the configured strategy IDs in order.
func (e *Engine) StrategyIDs() []string {
	ids := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		ids[i] = s.cfg.ID
	}
	return ids
}

// StrategyVectors computes every strategy's weight vector for one date.
func (e *Engine) StrategyVectors(table *obs.Table, date time.Time) (map[string]weights.Vector, *DateOutcome) {
	start := time.Now()
	outcome := &DateOutcome{Date: date}
	vectors := make(map[string]weights.Vector, len(e.strategies))

	for _, s := range e.strategies {
		v, so := s.WeightsFor(e.filter, table, date)
		outcome.Strategies = append(outcome.Strategies, so)
		vectors[s.cfg.ID] = v
		e.record(so)
	}

	if e.collector != nil {
		e.collector.DatesProcessed.Inc()
		e.collector.RebalanceDuration.Observe(time.Since(start).Seconds())
	}
	return vectors, outcome
}

// Combine merges per-strategy vectors under the configured allocations,
// redistributing capital away from inactive strategies. Recomputed from the
// current active set on every call.
func (e *Engine) Combine(vectors map[string]weights.Vector) weights.Vector {
	return portfolio.Combine(vectors, e.allocs)
}

// TargetsFor computes the combined portfolio target vector for one date.
func (e *Engine) TargetsFor(table *obs.Table, date time.Time) (weights.Vector, *DateOutcome) {
	vectors, outcome := e.StrategyVectors(table, date)
	return e.Combine(vectors), outcome
}

func (e *Engine) record(so *StrategyOutcome) {
	if e.collector == nil {
		return
	}
	if so.Degenerate {
		e.collector.DegenerateDates.Inc()
	}
	for _, ex := range so.Exclusions {
		e.collector.AssetsExcluded.WithLabelValues(ex.Reason).Inc()
	}
	if so.Report != nil {
		for _, tr := range so.Report.Path {
			e.collector.WeightFallbacks.WithLabelValues(tr.From, tr.To).Inc()
		}
	}
}
