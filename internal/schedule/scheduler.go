// Package schedule flags rebalance dates and forward-fills held weight
// vectors across the hold dates in between.
package schedule

import (
	"fmt"
	"time"

	"github.com/sawpanic/factorport/internal/weights"
)

// Events returns every Nth trading date starting from the first available
// date. periodDays counts table dates, not calendar days, matching the
// always-on trading calendar of the asset class.
func Events(dates []time.Time, periodDays int) ([]time.Time, error) {
	if periodDays < 1 {
		return nil, fmt.Errorf("rebalance period must be >= 1 day, got %d", periodDays)
	}
	var events []time.Time
	for i := 0; i < len(dates); i += periodDays {
		events = append(events, dates[i])
	}
	return events, nil
}

// ForwardFill carries each rebalance event's weight vector across every date
// until the next event. An asset that leaves the universe mid-period keeps
// its stale weight until the next rebalance recomputes the vector.
func ForwardFill(atEvents map[time.Time]weights.Vector, dates []time.Time) map[time.Time]weights.Vector {
	filled := make(map[time.Time]weights.Vector, len(dates))
	var held weights.Vector
	for _, d := range dates {
		if v, ok := atEvents[d]; ok {
			held = v
		}
		if held == nil {
			continue // before the first event with weights
		}
		filled[d] = held
	}
	return filled
}
