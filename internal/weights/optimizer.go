package weights

import (
	"fmt"
	"math"
)

// OptimizerConfig controls the constrained coordinate-descent solve for the
// risk budgeting objective.
type OptimizerConfig struct {
	MaxEvaluations    int     `yaml:"max_evaluations"`    // Objective evaluation budget (default: 600)
	Tolerance         float64 `yaml:"tolerance"`          // Convergence tolerance on objective (default: 1e-12)
	InitialStepSize   float64 `yaml:"initial_step_size"`  // Initial coordinate step (default: 0.05)
	BacktrackingRatio float64 `yaml:"backtracking_ratio"` // Step shrink factor (default: 0.5)
	MinStepSize       float64 `yaml:"min_step_size"`      // Step floor signalling convergence (default: 1e-7)
	Seed              uint64  `yaml:"seed"`               // RNG seed for deterministic direction order
}

// DefaultOptimizerConfig returns the default solver settings.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MaxEvaluations:    600,
		Tolerance:         1e-12,
		InitialStepSize:   0.05,
		BacktrackingRatio: 0.5,
		MinStepSize:       1e-7,
		Seed:              1,
	}
}

// riskBudgetObjective measures the squared deviation of each asset's
// fractional risk contribution from the equal budget 1/n.
func riskBudgetObjective(cov [][]float64, w []float64) float64 {
	n := len(w)
	rc := RiskContributions(cov, w)
	if rc == nil {
		return math.Inf(1)
	}
	target := 1.0 / float64(n)
	obj := 0.0
	for _, c := range rc {
		d := c - target
		obj += d * d
	}
	return obj
}

// RiskContributions returns each asset's fraction of total portfolio
// variance, w_i*(Σw)_i / wᵀΣw. Returns nil when total variance is not
// strictly positive.
func RiskContributions(cov [][]float64, w []float64) []float64 {
	n := len(w)
	sigmaW := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigmaW[i] += cov[i][j] * w[j]
		}
		total += w[i] * sigmaW[i]
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return nil
	}
	rc := make([]float64, n)
	for i := 0; i < n; i++ {
		rc[i] = w[i] * sigmaW[i] / total
	}
	return rc
}

// SolveRiskBudget minimizes the equal-risk-contribution objective over the
// box-and-simplex feasible set {w: Σw=1, lo <= w_i <= hi}, seeded from the
// equal-weight vector. It returns ErrOptimizationFailed when the solve cannot
// produce a finite improvement path; callers fall back to simple risk parity.
func SolveRiskBudget(cov [][]float64, lo, hi float64, cfg OptimizerConfig) ([]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty covariance", ErrOptimizationFailed)
	}
	if float64(n)*lo > 1+SumTolerance || float64(n)*hi < 1-SumTolerance {
		return nil, fmt.Errorf("%w: infeasible bounds [%f, %f] for n=%d", ErrOptimizationFailed, lo, hi, n)
	}
	if !validCovariance(cov) {
		return nil, fmt.Errorf("%w: degenerate covariance matrix", ErrOptimizationFailed)
	}

	current := make([]float64, n)
	for i := range current {
		current[i] = 1.0 / float64(n)
	}
	current = projectFeasible(current, lo, hi)

	best := append([]float64(nil), current...)
	bestObj := riskBudgetObjective(cov, current)
	if math.IsInf(bestObj, 0) {
		return nil, fmt.Errorf("%w: objective undefined at seed", ErrOptimizationFailed)
	}

	rng := newRandGen(cfg.Seed)
	step := cfg.InitialStepSize
	evals := 1

	for evals < cfg.MaxEvaluations {
		improved := false

		for coord := 0; coord < n && evals < cfg.MaxEvaluations; coord++ {
			directions := [2]float64{1, -1}
			if rng.Float64() < 0.5 {
				directions[0], directions[1] = directions[1], directions[0]
			}

			for _, dir := range directions {
				if evals >= cfg.MaxEvaluations {
					break
				}
				trial := append([]float64(nil), current...)
				trial[coord] += dir * step
				trial = projectFeasible(trial, lo, hi)

				obj := riskBudgetObjective(cov, trial)
				evals++
				if obj < bestObj {
					best = trial
					bestObj = obj
					current = trial
					improved = true
					break
				}
			}
		}

		if improved {
			step = cfg.InitialStepSize
			if bestObj < cfg.Tolerance {
				return best, nil
			}
			continue
		}

		step *= cfg.BacktrackingRatio
		if step < cfg.MinStepSize {
			// Step floor reached: converged to a local solution.
			return best, nil
		}
	}

	if math.IsInf(bestObj, 0) || math.IsNaN(bestObj) {
		return nil, fmt.Errorf("%w: no finite solution after %d evaluations", ErrOptimizationFailed, evals)
	}
	return best, nil
}

// projectFeasible maps an arbitrary vector onto {Σw=1, lo <= w <= hi} by
// alternating clamping with uniform redistribution of the mass deficit over
// unsaturated coordinates.
func projectFeasible(w []float64, lo, hi float64) []float64 {
	out := append([]float64(nil), w...)

	for iter := 0; iter < 64; iter++ {
		sum := 0.0
		for i := range out {
			if out[i] < lo {
				out[i] = lo
			}
			if out[i] > hi {
				out[i] = hi
			}
			sum += out[i]
		}
		deficit := 1 - sum
		if math.Abs(deficit) <= SumTolerance/10 {
			return out
		}

		free := 0
		for i := range out {
			if (deficit > 0 && out[i] < hi) || (deficit < 0 && out[i] > lo) {
				free++
			}
		}
		if free == 0 {
			// Bounds fully saturated; renormalize as a last resort.
			for i := range out {
				out[i] /= sum
			}
			return out
		}
		share := deficit / float64(free)
		for i := range out {
			if (deficit > 0 && out[i] < hi) || (deficit < 0 && out[i] > lo) {
				out[i] += share
			}
		}
	}
	return out
}

// randGen is a small deterministic splitmix64 generator so optimization runs
// are reproducible for a fixed seed.
type randGen struct {
	state uint64
}

func newRandGen(seed uint64) *randGen {
	return &randGen{state: seed}
}

func (r *randGen) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (r *randGen) Float64() float64 {
	return float64(r.next()>>11) / float64(1<<53)
}
