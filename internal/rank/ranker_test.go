package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorport/internal/obs"
)

var testDay = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func observations(factors map[string]float64, order []string) []obs.Observation {
	out := make([]obs.Observation, 0, len(order))
	for _, asset := range order {
		out = append(out, obs.Observation{Date: testDay, Asset: asset, FactorValue: factors[asset]})
	}
	return out
}

func TestRank_PercentileMode(t *testing.T) {
	cfg := Config{Mode: ModePercentile, LongPercentile: 20, ShortPercentile: 80}
	factors := map[string]float64{
		"A": 1, "B": 2, "C": 3, "D": 4, "E": 5,
		"F": 6, "G": 7, "H": 8, "I": 9, "J": 10,
	}
	signals, err := Rank(observations(factors, []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}), cfg)
	require.NoError(t, err)
	require.Len(t, signals, 10)

	byAsset := make(map[string]Signal)
	for _, s := range signals {
		byAsset[s.Asset] = s
	}

	// Bottom 20% long, top 20% short, middle neutral.
	assert.Equal(t, Long, byAsset["A"].Direction)
	assert.Equal(t, Long, byAsset["B"].Direction)
	assert.Equal(t, Neutral, byAsset["E"].Direction)
	assert.Equal(t, Short, byAsset["I"].Direction)
	assert.Equal(t, Short, byAsset["J"].Direction)

	assert.Equal(t, 1, byAsset["A"].Rank)
	assert.InDelta(t, 10.0, byAsset["A"].Percentile, 1e-12)
	assert.InDelta(t, 100.0, byAsset["J"].Percentile, 1e-12)
}

func TestRank_ContrarianInvertsSides(t *testing.T) {
	cfg := Config{Mode: ModePercentile, LongPercentile: 50, ShortPercentile: 50.0001, Contrarian: true}
	factors := map[string]float64{"LOW": 1, "HIGH": 2}
	signals, err := Rank(observations(factors, []string{"LOW", "HIGH"}), cfg)
	require.NoError(t, err)

	byAsset := make(map[string]Signal)
	for _, s := range signals {
		byAsset[s.Asset] = s
	}
	assert.Equal(t, Short, byAsset["LOW"].Direction)
	assert.Equal(t, Long, byAsset["HIGH"].Direction)
}

func TestRank_StableTieBreakByFirstObserved(t *testing.T) {
	cfg := Config{Mode: ModePercentile, LongPercentile: 25, ShortPercentile: 80}
	factors := map[string]float64{"X": 1, "Y": 1, "Z": 1, "W": 1}

	first, err := Rank(observations(factors, []string{"X", "Y", "Z", "W"}), cfg)
	require.NoError(t, err)
	// Ranks follow input order on ties, reproducibly.
	assert.Equal(t, "X", first[0].Asset)
	assert.Equal(t, Long, first[0].Direction)

	again, err := Rank(observations(factors, []string{"X", "Y", "Z", "W"}), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	reordered, err := Rank(observations(factors, []string{"W", "Z", "Y", "X"}), cfg)
	require.NoError(t, err)
	assert.Equal(t, "W", reordered[0].Asset)
}

func TestRank_QuantileMode(t *testing.T) {
	cfg := Config{Mode: ModeQuantile, QuantileCount: 5}
	factors := map[string]float64{}
	order := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	for i, a := range order {
		factors[a] = float64(i)
	}

	signals, err := Rank(observations(factors, order), cfg)
	require.NoError(t, err)

	longs, shorts := Split(signals)
	assert.Equal(t, []string{"A", "B"}, longs)
	assert.Equal(t, []string{"I", "J"}, shorts)
}

func TestRank_DegenerateUniverse(t *testing.T) {
	cfg := Config{Mode: ModeQuantile, QuantileCount: 5}
	_, err := Rank(observations(map[string]float64{"A": 1, "B": 2}, []string{"A", "B"}), cfg)
	assert.ErrorIs(t, err, ErrDegenerateUniverse)

	_, err = Rank(nil, cfg)
	assert.ErrorIs(t, err, ErrDegenerateUniverse)
}

func TestRank_UniqueAssetPerDate(t *testing.T) {
	cfg := DefaultConfig()
	factors := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}
	signals, err := Rank(observations(factors, []string{"A", "B", "C", "D", "E"}), cfg)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, s := range signals {
		assert.False(t, seen[s.Asset], "duplicate signal for %s", s.Asset)
		seen[s.Asset] = true
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"long above short", Config{Mode: ModePercentile, LongPercentile: 80, ShortPercentile: 20}, false},
		{"long equals short", Config{Mode: ModePercentile, LongPercentile: 50, ShortPercentile: 50}, false},
		{"quantile too small", Config{Mode: ModeQuantile, QuantileCount: 1}, false},
		{"quantile ok", Config{Mode: ModeQuantile, QuantileCount: 4}, true},
		{"unknown mode", Config{Mode: "decile-ish"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
