// Package portfolio combines per-strategy weight vectors into one portfolio
// under configured capital allocations, redistributing capital away from
// strategies that produced no signals. The same combination path serves the
// backtest simulator and the live reconciler.
package portfolio

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/weights"
)

// StrategyAllocation assigns one constituent strategy its capital fraction.
// Pinned strategies never receive redistributed capital and never give theirs
// up; an inactive pinned strategy's capital simply sits idle for the date.
type StrategyAllocation struct {
	ID       string  `yaml:"id"`
	Fraction float64 `yaml:"fraction"`
	Pinned   bool    `yaml:"pinned"`
}

// ValidateAllocations checks that fractions are positive, IDs unique, and the
// total does not exceed 1.
func ValidateAllocations(allocs []StrategyAllocation) error {
	if len(allocs) == 0 {
		return fmt.Errorf("no strategy allocations configured")
	}
	seen := make(map[string]bool, len(allocs))
	total := 0.0
	for _, a := range allocs {
		if a.ID == "" {
			return fmt.Errorf("strategy allocation with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate strategy allocation %q", a.ID)
		}
		seen[a.ID] = true
		if a.Fraction <= 0 {
			return fmt.Errorf("strategy %q has non-positive fraction %f", a.ID, a.Fraction)
		}
		total += a.Fraction
	}
	if total > 1+weights.SumTolerance {
		return fmt.Errorf("strategy fractions sum to %f, exceeding 1", total)
	}
	return nil
}

// Redistribute returns the effective capital fraction per strategy given
// which strategies are active for the date. Inactive flexible capital is
// spread proportionally across the remaining active flexible strategies so
// gross exposure is preserved. Recomputed on every invocation, never cached.
func Redistribute(allocs []StrategyAllocation, active map[string]bool) map[string]float64 {
	out := make(map[string]float64, len(allocs))

	var flexibleActive, flexibleTotal float64
	for _, a := range allocs {
		if a.Pinned {
			continue
		}
		flexibleTotal += a.Fraction
		if active[a.ID] {
			flexibleActive += a.Fraction
		}
	}

	scale := 1.0
	if flexibleActive > 0 {
		scale = flexibleTotal / flexibleActive
	}

	for _, a := range allocs {
		if !active[a.ID] {
			out[a.ID] = 0
			continue
		}
		if a.Pinned {
			out[a.ID] = a.Fraction
			continue
		}
		out[a.ID] = a.Fraction * scale
	}
	return out
}

// Combine scales each active strategy's weight vector by its effective
// fraction and sums them into the portfolio vector for the date.
func Combine(vectors map[string]weights.Vector, allocs []StrategyAllocation) weights.Vector {
	active := make(map[string]bool, len(vectors))
	for id, v := range vectors {
		active[id] = len(v) > 0
	}
	fractions := Redistribute(allocs, active)

	combined := make(weights.Vector)
	for id, v := range vectors {
		f := fractions[id]
		if f == 0 {
			continue
		}
		for asset, w := range v {
			combined[asset] += f * w
		}
	}

	for id, ok := range active {
		if !ok {
			log.Warn().Str("strategy", id).Msg("Strategy inactive, capital redistributed")
		}
	}
	return combined
}
