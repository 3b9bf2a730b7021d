package universe

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorport/internal/obs"
)

func day(n int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func buildTable(t *testing.T) *obs.Table {
	t.Helper()
	table := obs.NewTable()
	for i := 0; i < 10; i++ {
		require.NoError(t, table.Append(obs.Observation{
			Date: day(i), Asset: "GOOD", FactorValue: 1, Volume: 1000, MarketCap: 1e9,
		}))
		require.NoError(t, table.Append(obs.Observation{
			Date: day(i), Asset: "NOFACTOR", FactorValue: math.NaN(), Volume: 1000, MarketCap: 1e9,
		}))
		if i >= 7 {
			require.NoError(t, table.Append(obs.Observation{
				Date: day(i), Asset: "NEWLISTING", FactorValue: 1, Volume: 1000, MarketCap: 1e9,
			}))
		}
	}
	return table
}

func TestFilter_ExclusionReasons(t *testing.T) {
	table := buildTable(t)
	filter := NewFilter(FilterConfig{LookbackDays: 10, MinCoverage: 0.7})

	eligible, excluded := filter.Eligible(table, day(9))
	require.Len(t, eligible, 1)
	assert.Equal(t, "GOOD", eligible[0].Asset)

	reasons := make(map[string]string)
	for _, ex := range excluded {
		reasons[ex.Asset] = ex.Reason
	}
	assert.Equal(t, ReasonMissingFactor, reasons["NOFACTOR"])
	assert.Equal(t, ReasonInsufficientHistory, reasons["NEWLISTING"])
}

func TestFilter_ExclusionIsPerDateOnly(t *testing.T) {
	table := obs.NewTable()
	for i := 0; i < 10; i++ {
		require.NoError(t, table.Append(obs.Observation{Date: day(i), Asset: "X", FactorValue: 1}))
	}

	// With a 5-day lookback, X has full coverage late but thin coverage on
	// day 1; the early exclusion must not follow it forward.
	filter := NewFilter(FilterConfig{LookbackDays: 5, MinCoverage: 0.7})

	early, _ := filter.Eligible(table, day(1))
	assert.Empty(t, early)

	late, _ := filter.Eligible(table, day(9))
	assert.Len(t, late, 1)
}

func TestFilter_VolumeAndMarketCapFloors(t *testing.T) {
	table := obs.NewTable()
	require.NoError(t, table.Append(obs.Observation{Date: day(0), Asset: "THIN", FactorValue: 1, Volume: 10, MarketCap: 1e9}))
	require.NoError(t, table.Append(obs.Observation{Date: day(0), Asset: "SMALL", FactorValue: 1, Volume: 1e6, MarketCap: 1e3}))
	require.NoError(t, table.Append(obs.Observation{Date: day(0), Asset: "OK", FactorValue: 1, Volume: 1e6, MarketCap: 1e9}))

	filter := NewFilter(FilterConfig{LookbackDays: 1, MinCoverage: 0.5, MinVolume: 100, MinMarketCap: 1e6})
	eligible, excluded := filter.Eligible(table, day(0))

	require.Len(t, eligible, 1)
	assert.Equal(t, "OK", eligible[0].Asset)

	reasons := make(map[string]string)
	for _, ex := range excluded {
		reasons[ex.Asset] = ex.Reason
	}
	assert.Equal(t, ReasonLowVolume, reasons["THIN"])
	assert.Equal(t, ReasonLowMarketCap, reasons["SMALL"])
}
