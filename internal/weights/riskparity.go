package weights

import (
	"math"

	"github.com/rs/zerolog/log"
)

// RiskParity weights each asset inversely to its trailing realized
// volatility. Zero or missing volatilities are substituted with the side's
// mean volatility before inverting; a side with no usable volatility at all
// falls back to equal weight for that side only.
type RiskParity struct{}

// Name implements Method.
func (RiskParity) Name() string { return MethodRiskParity }

// Weights implements Method.
func (RiskParity) Weights(req Request) (Vector, *Report, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	report := newReport(MethodRiskParity)
	out := make(Vector, len(req.Long)+len(req.Short))
	merge(out, riskParitySide(req.Long, req.LongAllocation, false, req.Volatility, report))
	merge(out, riskParitySide(req.Short, req.ShortAllocation, true, req.Volatility, report))
	return out, report, nil
}

func riskParitySide(assets []string, allocation float64, short bool, vols map[string]float64, report *Report) Vector {
	if len(assets) == 0 {
		return nil
	}

	side := "long"
	if short {
		side = "short"
	}

	mean, valid := sideMeanVol(assets, vols)
	if valid == 0 {
		report.fallback(side, MethodRiskParity, MethodEqual, "all volatilities missing or zero")
		log.Warn().Str("side", side).Msg("Risk parity degraded to equal weight")
		return equalSide(assets, allocation, short)
	}

	scores := make([]float64, len(assets))
	for i, a := range assets {
		sigma := vols[a]
		if !usableVol(sigma) {
			sigma = mean
		}
		scores[i] = 1 / sigma
	}
	return scaleSide(assets, scores, allocation, short)
}

func sideMeanVol(assets []string, vols map[string]float64) (mean float64, valid int) {
	sum := 0.0
	for _, a := range assets {
		if v := vols[a]; usableVol(v) {
			sum += v
			valid++
		}
	}
	if valid == 0 {
		return 0, 0
	}
	return sum / float64(valid), valid
}

func usableVol(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
