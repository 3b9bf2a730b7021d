package weights

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// EnhancedConfig controls the correlation-aware risk parity method.
type EnhancedConfig struct {
	Shrinkage  float64         `yaml:"shrinkage"`   // Diagonal shrinkage intensity (default: 0.3)
	MinWeight  float64         `yaml:"min_weight"`  // Per-asset lower bound within a side (default: 0.05)
	MaxWeight  float64         `yaml:"max_weight"`  // Per-asset upper bound within a side (default: 0.50)
	MinOverlap int             `yaml:"min_overlap"` // Observations required to participate (default: 30)
	Optimizer  OptimizerConfig `yaml:"optimizer"`
}

// DefaultEnhancedConfig returns the default enhanced risk parity settings.
func DefaultEnhancedConfig() EnhancedConfig {
	return EnhancedConfig{
		Shrinkage:  0.3,
		MinWeight:  0.05,
		MaxWeight:  0.50,
		MinOverlap: 30,
		Optimizer:  DefaultOptimizerConfig(),
	}
}

// Validate rejects impossible settings before any computation.
func (c EnhancedConfig) Validate() error {
	if c.Shrinkage < 0 || c.Shrinkage > 1 {
		return fmt.Errorf("shrinkage %.3f outside [0,1]", c.Shrinkage)
	}
	if c.MinWeight < 0 || c.MaxWeight <= 0 || c.MinWeight >= c.MaxWeight {
		return fmt.Errorf("invalid weight bounds [%.3f, %.3f]", c.MinWeight, c.MaxWeight)
	}
	if c.MinOverlap < 2 {
		return fmt.Errorf("min_overlap must be >= 2, got %d", c.MinOverlap)
	}
	return nil
}

// EnhancedRiskParity equalizes risk contributions under a shrunk covariance
// matrix with box bounds. Candidates below the overlap threshold are excluded
// from the date's optimization and receive zero weight. A failed solve falls
// back to simple risk parity from the shrunk diagonal; the method never
// returns an error for degraded market data.
type EnhancedRiskParity struct {
	config EnhancedConfig
}

// NewEnhancedRiskParity creates the method.
func NewEnhancedRiskParity(config EnhancedConfig) EnhancedRiskParity {
	return EnhancedRiskParity{config: config}
}

// Name implements Method.
func (EnhancedRiskParity) Name() string { return MethodEnhancedRP }

// Weights implements Method.
func (e EnhancedRiskParity) Weights(req Request) (Vector, *Report, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	report := newReport(MethodEnhancedRP)
	out := make(Vector, len(req.Long)+len(req.Short))
	merge(out, e.side(req.Long, req.LongAllocation, false, req, report))
	merge(out, e.side(req.Short, req.ShortAllocation, true, req, report))
	return out, report, nil
}

func (e EnhancedRiskParity) side(assets []string, allocation float64, short bool, req Request, report *Report) Vector {
	if len(assets) == 0 {
		return nil
	}
	side := "long"
	if short {
		side = "short"
	}

	// Overlap gate: assets without enough trailing observations sit out this
	// date with zero weight.
	candidates := make([]string, 0, len(assets))
	for _, a := range assets {
		if Overlap(req.Returns[a]) >= e.config.MinOverlap {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		report.fallback(side, MethodEnhancedRP, MethodRiskParity, "no candidate meets the overlap threshold")
		return riskParitySide(assets, allocation, short, req.Volatility, report)
	}
	if len(candidates) == 1 {
		return scaleSide(candidates, []float64{1}, allocation, short)
	}

	shrunk := Shrink(PairwiseCovariance(req.Returns, candidates), e.config.Shrinkage)

	solved, err := SolveRiskBudget(shrunk, e.config.MinWeight, e.config.MaxWeight, e.config.Optimizer)
	if err != nil {
		report.fallback(side, MethodEnhancedRP, MethodRiskParity, err.Error())
		log.Warn().
			Str("side", side).
			Time("date", req.Date).
			Err(err).
			Msg("Enhanced risk parity fell back to simple risk parity")
		return diagonalRiskParity(candidates, shrunk, allocation, short, report)
	}

	out := make(Vector, len(candidates))
	sign := 1.0
	if short {
		sign = -1.0
	}
	for i, a := range candidates {
		out[a] = sign * allocation * solved[i]
	}
	return out
}

// diagonalRiskParity is the fallback weighting: inverse volatility taken from
// the shrunk covariance diagonal alone.
func diagonalRiskParity(assets []string, cov [][]float64, allocation float64, short bool, report *Report) Vector {
	vols := make(map[string]float64, len(assets))
	for i, a := range assets {
		if cov[i][i] > 0 && !math.IsNaN(cov[i][i]) {
			vols[a] = math.Sqrt(cov[i][i])
		}
	}
	return riskParitySide(assets, allocation, short, vols, report)
}
