package backtest

import (
	"math"
	"time"
)

// Metrics are the closed-form performance statistics derived from the daily
// return series of a completed run.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"` // Annualized
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	MaxDrawdownDays  int     `json:"max_drawdown_days"`
	Calmar           float64 `json:"calmar"`
	WinRate          float64 `json:"win_rate"`
	Periods          int     `json:"periods"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ComputeMetrics derives performance statistics from an equity curve using
// the configured trading-day convention (365 for always-on crypto markets).
func ComputeMetrics(equity []EquityPoint, config Config) Metrics {
	m := Metrics{Periods: len(equity)}
	if len(equity) == 0 {
		return m
	}
	m.StartDate = equity[0].Date
	m.EndDate = equity[len(equity)-1].Date

	first, last := equity[0], equity[len(equity)-1]
	base := first.Value / (1 + first.Return) // value before the first period
	if base > 0 {
		m.TotalReturn = last.Value/base - 1
	}

	annDays := float64(config.AnnualizationDays)
	years := float64(len(equity)) / annDays
	if years > 0 && m.TotalReturn > -1 {
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, 1/years) - 1
	}

	mean, wins := 0.0, 0
	for _, p := range equity {
		mean += p.Return
		if p.Return > 0 {
			wins++
		}
	}
	mean /= float64(len(equity))
	m.WinRate = float64(wins) / float64(len(equity))

	if len(equity) > 1 {
		variance, downVariance, downCount := 0.0, 0.0, 0
		for _, p := range equity {
			d := p.Return - mean
			variance += d * d
			if p.Return < 0 {
				downVariance += p.Return * p.Return
				downCount++
			}
		}
		variance /= float64(len(equity) - 1)
		m.Volatility = math.Sqrt(variance) * math.Sqrt(annDays)

		if m.Volatility > 0 {
			m.Sharpe = (m.AnnualizedReturn - config.RiskFreeRate) / m.Volatility
		}
		if downCount > 0 {
			downVol := math.Sqrt(downVariance/float64(downCount)) * math.Sqrt(annDays)
			if downVol > 0 {
				m.Sortino = (m.AnnualizedReturn - config.RiskFreeRate) / downVol
			}
		}
	}

	m.MaxDrawdown, m.MaxDrawdownDays = maxDrawdown(equity)
	if m.MaxDrawdown > 0 {
		m.Calmar = m.AnnualizedReturn / m.MaxDrawdown
	}
	return m
}

// maxDrawdown walks the equity curve tracking the running peak.
func maxDrawdown(equity []EquityPoint) (float64, int) {
	peak := equity[0].Value
	maxDD := 0.0
	ddDays, currentDDDays := 0, 0

	for _, p := range equity {
		if p.Value >= peak {
			peak = p.Value
			currentDDDays = 0
			continue
		}
		currentDDDays++
		dd := (peak - p.Value) / peak
		if dd > maxDD {
			maxDD = dd
			ddDays = currentDDDays
		}
	}
	return maxDD, ddDays
}
