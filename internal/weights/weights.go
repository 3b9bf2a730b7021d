// Package weights converts per-date signals into normalized portfolio weights.
// Three interchangeable methods sit behind the Method interface: equal weight,
// inverse-volatility risk parity, and correlation-aware enhanced risk parity.
// Fallbacks between methods are explicit state transitions recorded on the
// report, never silent.
package weights

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Method names used for config dispatch and fallback reporting.
const (
	MethodEqual      = "equal"
	MethodRiskParity = "risk_parity"
	MethodEnhancedRP = "enhanced_risk_parity"
)

// SumTolerance is the per-side allocation tolerance every method must meet.
const SumTolerance = 1e-9

// ErrOptimizationFailed signals a non-converged or invalid enhanced risk
// parity solve. It is always absorbed by the fallback transition and never
// escapes the calculator.
var ErrOptimizationFailed = errors.New("risk budget optimization failed")

// Vector maps asset to signed portfolio weight for one date. Long weights are
// positive, short weights negative.
type Vector map[string]float64

// SideSums returns the summed long and short weight (short as a negative value).
func (v Vector) SideSums() (long, short float64) {
	for _, w := range v {
		if w >= 0 {
			long += w
		} else {
			short += w
		}
	}
	return long, short
}

// Gross returns the gross exposure Σ|w|.
func (v Vector) Gross() float64 {
	g := 0.0
	for _, w := range v {
		g += math.Abs(w)
	}
	return g
}

// Request carries one date's weighting inputs. Volatility and Returns are
// auxiliary data joined by the caller; methods that do not need them ignore
// them.
type Request struct {
	Date            time.Time
	Long            []string
	Short           []string
	LongAllocation  float64 // positive fraction of capital for the long side
	ShortAllocation float64 // positive fraction; emitted weights are negated

	Volatility map[string]float64   // trailing realized vol per asset
	Returns    map[string][]float64 // aligned trailing return series, NaN gaps
}

// Transition is one edge of the fallback state machine.
type Transition struct {
	Side   string `json:"side"` // "long" or "short"
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Report records which method was requested and which path the computation
// actually took, so callers and tests can assert on fallbacks.
type Report struct {
	Requested string       `json:"requested"`
	Applied   string       `json:"applied"`
	Path      []Transition `json:"path,omitempty"`
}

func newReport(requested string) *Report {
	return &Report{Requested: requested, Applied: requested}
}

func (r *Report) fallback(side, from, to, reason string) {
	r.Path = append(r.Path, Transition{Side: side, From: from, To: to, Reason: reason})
	r.Applied = to
}

// FellBack reports whether any fallback transition was taken.
func (r *Report) FellBack() bool {
	return len(r.Path) > 0
}

// Method is the weighting strategy contract. Implementations must return a
// Vector whose per-side sums match the requested allocations within
// SumTolerance, and must never fail once inputs are validated: degraded
// inputs trigger fallbacks, not errors.
type Method interface {
	Name() string
	Weights(req Request) (Vector, *Report, error)
}

// New dispatches a method by configured name.
func New(name string, enhanced EnhancedConfig) (Method, error) {
	switch name {
	case MethodEqual:
		return EqualWeight{}, nil
	case MethodRiskParity:
		return RiskParity{}, nil
	case MethodEnhancedRP:
		return NewEnhancedRiskParity(enhanced), nil
	default:
		return nil, fmt.Errorf("unknown weighting method %q", name)
	}
}

// validate rejects structurally impossible requests up front.
func (req Request) validate() error {
	if req.LongAllocation < 0 || req.ShortAllocation < 0 {
		return fmt.Errorf("negative allocation: long=%f short=%f", req.LongAllocation, req.ShortAllocation)
	}
	return nil
}

// scaleSide normalizes raw positive scores into signed side weights summing
// exactly to the side allocation. Short weights come out negative.
func scaleSide(assets []string, scores []float64, allocation float64, short bool) Vector {
	total := 0.0
	for _, s := range scores {
		total += s
	}
	out := make(Vector, len(assets))
	if total == 0 {
		return out
	}
	sign := 1.0
	if short {
		sign = -1.0
	}
	for i, a := range assets {
		out[a] = sign * allocation * scores[i] / total
	}
	return out
}

func merge(dst, src Vector) {
	for a, w := range src {
		dst[a] = w
	}
}
