// Package rank assigns LONG/SHORT/NEUTRAL signals from a cross-sectional
// ranking of factor values on a single date.
package rank

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/obs"
)

// Direction is the trading side assigned to a ranked asset.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// Bucketing modes.
const (
	ModePercentile = "percentile"
	ModeQuantile   = "quantile"
)

// ErrDegenerateUniverse is returned when a date has fewer eligible assets
// than required buckets. Callers skip the date; it is never fatal.
var ErrDegenerateUniverse = errors.New("eligible asset count below bucket count")

// Signal is one asset's cross-sectional ranking outcome for a date.
type Signal struct {
	Date       time.Time `json:"date"`
	Asset      string    `json:"asset"`
	Direction  Direction `json:"direction"`
	Rank       int       `json:"rank"`       // 1-based ascending factor rank
	Percentile float64   `json:"percentile"` // rank / eligible count * 100
}

// Config controls bucketing. Contrarian inverts the LONG/SHORT mapping so
// directionality stays a pure configuration flag.
type Config struct {
	Mode            string  `yaml:"mode"`             // percentile | quantile
	QuantileCount   int     `yaml:"quantile_count"`   // Buckets in quantile mode (default: 5)
	LongPercentile  float64 `yaml:"long_percentile"`  // Percentile mode: <= goes long (default: 20)
	ShortPercentile float64 `yaml:"short_percentile"` // Percentile mode: >= goes short (default: 80)
	Contrarian      bool    `yaml:"contrarian"`       // Invert long/short buckets
}

// DefaultConfig returns a quintile percentile-threshold setup.
func DefaultConfig() Config {
	return Config{
		Mode:            ModePercentile,
		QuantileCount:   5,
		LongPercentile:  20,
		ShortPercentile: 80,
	}
}

// Validate rejects invalid bucketing parameters before any computation.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePercentile:
		if c.LongPercentile <= 0 || c.ShortPercentile > 100 {
			return fmt.Errorf("percentile thresholds out of range: long=%.1f short=%.1f", c.LongPercentile, c.ShortPercentile)
		}
		if c.LongPercentile >= c.ShortPercentile {
			return fmt.Errorf("long_percentile %.1f must be below short_percentile %.1f", c.LongPercentile, c.ShortPercentile)
		}
	case ModeQuantile:
		if c.QuantileCount < 2 {
			return fmt.Errorf("quantile_count must be >= 2, got %d", c.QuantileCount)
		}
	default:
		return fmt.Errorf("unknown ranking mode %q", c.Mode)
	}
	return nil
}

// Rank ranks one date's eligible observations ascending by factor value and
// assigns directions per the configured bucketing. The input order is the
// tie-break order (stable sort), so results are reproducible. Exactly one
// signal is emitted per eligible asset.
func Rank(eligible []obs.Observation, cfg Config) ([]Signal, error) {
	n := len(eligible)
	if n == 0 {
		return nil, ErrDegenerateUniverse
	}
	if cfg.Mode == ModeQuantile && n < cfg.QuantileCount {
		log.Warn().
			Time("date", eligible[0].Date).
			Int("eligible", n).
			Int("quantiles", cfg.QuantileCount).
			Msg("Degenerate universe, no signals emitted")
		return nil, ErrDegenerateUniverse
	}

	sorted := make([]obs.Observation, n)
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FactorValue < sorted[j].FactorValue
	})

	signals := make([]Signal, n)
	for i, o := range sorted {
		r := i + 1
		signals[i] = Signal{
			Date:       o.Date,
			Asset:      o.Asset,
			Rank:       r,
			Percentile: float64(r) / float64(n) * 100,
			Direction:  cfg.direction(r, n),
		}
	}
	return signals, nil
}

// direction maps a rank into LONG/SHORT/NEUTRAL. The bottom bucket (lowest
// factor values) is the long candidate bucket; Contrarian swaps the mapping.
func (c Config) direction(r, n int) Direction {
	var low bool
	var inBucket bool

	switch c.Mode {
	case ModeQuantile:
		bucketSize := n / c.QuantileCount
		switch {
		case r <= bucketSize:
			low, inBucket = true, true
		case r > n-bucketSize:
			low, inBucket = false, true
		}
	default: // percentile
		pct := float64(r) / float64(n) * 100
		switch {
		case pct <= c.LongPercentile:
			low, inBucket = true, true
		case pct >= c.ShortPercentile:
			low, inBucket = false, true
		}
	}

	if !inBucket {
		return Neutral
	}
	if low != c.Contrarian {
		return Long
	}
	return Short
}

// Split partitions signals into long and short asset lists, preserving
// signal order.
func Split(signals []Signal) (long, short []string) {
	for _, s := range signals {
		switch s.Direction {
		case Long:
			long = append(long, s.Asset)
		case Short:
			short = append(short, s.Asset)
		}
	}
	return long, short
}
