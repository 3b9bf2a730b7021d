// Package obs holds the per-date, per-asset observation model consumed by the
// signal pipeline. Observations are appended in non-decreasing date order and
// never mutated once recorded.
package obs

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Observation is a single (date, asset) row from the upstream data collaborator.
// Missing numeric fields are represented as NaN.
type Observation struct {
	Date        time.Time `json:"date"`
	Asset       string    `json:"asset"`
	FactorValue float64   `json:"factor_value"`
	Price       float64   `json:"price"`
	Return      float64   `json:"return"`
	Volatility  float64   `json:"volatility"`
	Volume      float64   `json:"volume"`
	MarketCap   float64   `json:"market_cap"`
}

// HasFactor reports whether the factor value is present.
func (o Observation) HasFactor() bool {
	return !math.IsNaN(o.FactorValue)
}

// Source supplies the observation table. Implemented by external data
// collaborators; the core only reads from it.
type Source interface {
	Observations(ctx context.Context) (*Table, error)
}

// Table is an in-memory observation store keyed by (date, asset). Per-date
// rows preserve insertion order so downstream ranking can tie-break by
// first-observed order.
type Table struct {
	dates   []time.Time
	byDate  map[time.Time][]Observation
	byAsset map[string]map[time.Time]Observation
}

// NewTable creates an empty observation table.
func NewTable() *Table {
	return &Table{
		byDate:  make(map[time.Time][]Observation),
		byAsset: make(map[string]map[time.Time]Observation),
	}
}

// Append records one observation. Rows must arrive in non-decreasing date
// order and at most one row may exist per (date, asset).
func (t *Table) Append(o Observation) error {
	o.Date = Day(o.Date)

	if n := len(t.dates); n > 0 && o.Date.Before(t.dates[n-1]) {
		return fmt.Errorf("out-of-order observation: %s %s before %s",
			o.Asset, o.Date.Format("2006-01-02"), t.dates[n-1].Format("2006-01-02"))
	}
	if _, ok := t.byAsset[o.Asset][o.Date]; ok {
		return fmt.Errorf("duplicate observation for %s on %s", o.Asset, o.Date.Format("2006-01-02"))
	}

	if _, ok := t.byDate[o.Date]; !ok {
		t.dates = append(t.dates, o.Date)
	}
	t.byDate[o.Date] = append(t.byDate[o.Date], o)

	if t.byAsset[o.Asset] == nil {
		t.byAsset[o.Asset] = make(map[time.Time]Observation)
	}
	t.byAsset[o.Asset][o.Date] = o
	return nil
}

// Dates returns all distinct dates in ascending order. The returned slice is
// shared and must not be modified.
func (t *Table) Dates() []time.Time {
	return t.dates
}

// ForDate returns the rows recorded for a date in first-observed order.
func (t *Table) ForDate(date time.Time) []Observation {
	return t.byDate[Day(date)]
}

// At looks up a single (date, asset) observation.
func (t *Table) At(date time.Time, asset string) (Observation, bool) {
	o, ok := t.byAsset[asset][Day(date)]
	return o, ok
}

// Coverage returns the fraction of the trailing lookback window (in table
// dates, ending at asOf inclusive) for which the asset has an observation.
func (t *Table) Coverage(asset string, asOf time.Time, lookback int) float64 {
	if lookback <= 0 {
		return 0
	}
	window := t.Window(asOf, lookback)
	if len(window) == 0 {
		return 0
	}
	have := 0
	for _, d := range window {
		if _, ok := t.byAsset[asset][d]; ok {
			have++
		}
	}
	return float64(have) / float64(lookback)
}

// Window returns up to n table dates ending at asOf inclusive, ascending.
// Dates after asOf are never included.
func (t *Table) Window(asOf time.Time, n int) []time.Time {
	asOf = Day(asOf)
	end := -1
	for i := len(t.dates) - 1; i >= 0; i-- {
		if !t.dates[i].After(asOf) {
			end = i
			break
		}
	}
	if end < 0 {
		return nil
	}
	start := end - n + 1
	if start < 0 {
		start = 0
	}
	return t.dates[start : end+1]
}

// ReturnSeries extracts the asset's return series over the trailing window
// ending at asOf. Dates with no observation yield NaN so callers can count
// overlap explicitly.
func (t *Table) ReturnSeries(asset string, asOf time.Time, n int) []float64 {
	window := t.Window(asOf, n)
	out := make([]float64, len(window))
	for i, d := range window {
		if o, ok := t.byAsset[asset][d]; ok {
			out[i] = o.Return
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Len returns the total number of observations.
func (t *Table) Len() int {
	n := 0
	for _, rows := range t.byDate {
		n += len(rows)
	}
	return n
}

// Day truncates a timestamp to its UTC calendar day. All table keys are
// normalized through it.
func Day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
