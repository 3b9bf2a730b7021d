// Package universe computes per-date asset eligibility: liquidity and
// market-cap floors plus a minimum historical data coverage requirement.
// Exclusions are local to a date and never remove an asset permanently.
package universe

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/obs"
)

// Exclusion reasons reported in the data-quality summary.
const (
	ReasonMissingFactor       = "missing_factor"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonLowVolume           = "low_volume"
	ReasonLowMarketCap        = "low_market_cap"
)

// FilterConfig controls eligibility.
type FilterConfig struct {
	LookbackDays int     `yaml:"lookback_days"`  // Coverage window length (default: 90)
	MinCoverage  float64 `yaml:"min_coverage"`   // Minimum coverage fraction (default: 0.7)
	MinVolume    float64 `yaml:"min_volume"`     // Volume floor, 0 disables
	MinMarketCap float64 `yaml:"min_market_cap"` // Market-cap floor, 0 disables
}

// DefaultFilterConfig returns the default eligibility settings.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		LookbackDays: 90,
		MinCoverage:  0.7,
	}
}

// Exclusion records why an asset was dropped for one date.
type Exclusion struct {
	Date   time.Time `json:"date"`
	Asset  string    `json:"asset"`
	Reason string    `json:"reason"`
}

// Filter applies eligibility rules per date.
type Filter struct {
	config FilterConfig
}

// NewFilter creates a universe filter.
func NewFilter(config FilterConfig) *Filter {
	return &Filter{config: config}
}

// Eligible returns the date's eligible observations in first-observed order,
// along with the exclusions applied. An asset excluded today remains a
// candidate on every other date.
func (f *Filter) Eligible(table *obs.Table, date time.Time) ([]obs.Observation, []Exclusion) {
	rows := table.ForDate(date)
	eligible := make([]obs.Observation, 0, len(rows))
	var excluded []Exclusion

	for _, o := range rows {
		if reason := f.check(table, o); reason != "" {
			excluded = append(excluded, Exclusion{Date: o.Date, Asset: o.Asset, Reason: reason})
			continue
		}
		eligible = append(eligible, o)
	}

	if len(excluded) > 0 {
		log.Debug().
			Time("date", date).
			Int("eligible", len(eligible)).
			Int("excluded", len(excluded)).
			Msg("Universe filtered")
	}
	return eligible, excluded
}

func (f *Filter) check(table *obs.Table, o obs.Observation) string {
	if !o.HasFactor() {
		return ReasonMissingFactor
	}
	if cov := table.Coverage(o.Asset, o.Date, f.config.LookbackDays); cov < f.config.MinCoverage {
		return ReasonInsufficientHistory
	}
	if f.config.MinVolume > 0 && (math.IsNaN(o.Volume) || o.Volume < f.config.MinVolume) {
		return ReasonLowVolume
	}
	if f.config.MinMarketCap > 0 && (math.IsNaN(o.MarketCap) || o.MarketCap < f.config.MinMarketCap) {
		return ReasonLowMarketCap
	}
	return ""
}
