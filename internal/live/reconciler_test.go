package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorport/internal/weights"
)

type fakeSource struct {
	positions map[string]float64
	capital   float64
	failures  int
	calls     int
}

func (f *fakeSource) Positions(ctx context.Context) (map[string]float64, float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, 0, errors.New("exchange unavailable")
	}
	return f.positions, f.capital, nil
}

type fakeSubmitter struct {
	submitted [][]Trade
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, trades []Trade) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, trades)
	return nil
}

type fakeRecorder struct {
	recorded []Trade
	err      error
}

func (f *fakeRecorder) Record(ctx context.Context, runID string, trades []Trade) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, trades...)
	return nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
	cfg.RatePerSec = 10_000
	return cfg
}

func TestPlan_DeadbandSuppressesSmallDelta(t *testing.T) {
	// A 20-notional delta on 10000 capital is 0.2% of capital, well inside
	// the 3% deadband.
	r := NewReconciler(fastConfig(), nil, nil, nil, nil)

	trades := r.Plan(weights.Vector{"BTC": 0.102}, map[string]float64{"BTC": 1000}, 10_000)
	assert.Empty(t, trades)
}

func TestPlan_DeltaAboveDeadbandTradesExactDelta(t *testing.T) {
	r := NewReconciler(fastConfig(), nil, nil, nil, nil)

	trades := r.Plan(weights.Vector{"BTC": 0.15}, map[string]float64{"BTC": 1000}, 10_000)
	require.Len(t, trades, 1)
	assert.Equal(t, "BTC", trades[0].Asset)
	assert.InDelta(t, 1000.0, trades[0].CurrentNotional, 1e-9)
	assert.InDelta(t, 1500.0, trades[0].TargetNotional, 1e-9)
	assert.InDelta(t, 500.0, trades[0].DeltaNotional, 1e-9)
}

func TestPlan_ClosesPositionsAbsentFromTargets(t *testing.T) {
	r := NewReconciler(fastConfig(), nil, nil, nil, nil)

	trades := r.Plan(weights.Vector{"BTC": 0.10}, map[string]float64{"ETH": 2000}, 10_000)
	require.Len(t, trades, 2)
	assert.Equal(t, "BTC", trades[0].Asset)
	assert.InDelta(t, 1000.0, trades[0].DeltaNotional, 1e-9)
	assert.Equal(t, "ETH", trades[1].Asset)
	assert.InDelta(t, -2000.0, trades[1].DeltaNotional, 1e-9)
}

func TestPlan_Idempotent(t *testing.T) {
	// Once fills bring positions to target, the next plan is empty.
	r := NewReconciler(fastConfig(), nil, nil, nil, nil)
	targets := weights.Vector{"BTC": 0.4, "ETH": -0.2}
	positions := map[string]float64{"BTC": 0}

	first := r.Plan(targets, positions, 10_000)
	require.NotEmpty(t, first)
	for _, tr := range first {
		positions[tr.Asset] = tr.TargetNotional
	}

	assert.Empty(t, r.Plan(targets, positions, 10_000))
}

func TestPlan_DeterministicOrder(t *testing.T) {
	r := NewReconciler(fastConfig(), nil, nil, nil, nil)
	targets := weights.Vector{"SOL": 0.2, "BTC": 0.2, "ETH": 0.2}

	for i := 0; i < 10; i++ {
		trades := r.Plan(targets, nil, 10_000)
		require.Len(t, trades, 3)
		assert.Equal(t, "BTC", trades[0].Asset)
		assert.Equal(t, "ETH", trades[1].Asset)
		assert.Equal(t, "SOL", trades[2].Asset)
	}
}

func TestPlan_ZeroCapitalEmitsNothing(t *testing.T) {
	r := NewReconciler(fastConfig(), nil, nil, nil, nil)
	assert.Empty(t, r.Plan(weights.Vector{"BTC": 0.5}, nil, 0))
}

func TestRun_SubmitsAndRecords(t *testing.T) {
	source := &fakeSource{positions: map[string]float64{"BTC": 0}, capital: 10_000}
	submitter := &fakeSubmitter{}
	recorder := &fakeRecorder{}
	r := NewReconciler(fastConfig(), source, submitter, recorder, nil)

	trades, err := r.Run(context.Background(), weights.Vector{"BTC": 0.5})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Len(t, submitter.submitted, 1)
	assert.Len(t, recorder.recorded, 1)
	assert.InDelta(t, 5000.0, recorder.recorded[0].DeltaNotional, 1e-9)
}

func TestRun_RetriesTransientPositionFailure(t *testing.T) {
	source := &fakeSource{positions: map[string]float64{}, capital: 10_000, failures: 2}
	submitter := &fakeSubmitter{}
	r := NewReconciler(fastConfig(), source, submitter, nil, nil)

	_, err := r.Run(context.Background(), weights.Vector{"BTC": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestRun_AbortsWhenPositionsUnavailable(t *testing.T) {
	source := &fakeSource{failures: 100}
	submitter := &fakeSubmitter{}
	r := NewReconciler(fastConfig(), source, submitter, nil, nil)

	_, err := r.Run(context.Background(), weights.Vector{"BTC": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch positions")
	assert.Empty(t, submitter.submitted)
}

func TestRun_SubmitFailureIsFatal(t *testing.T) {
	source := &fakeSource{positions: map[string]float64{}, capital: 10_000}
	submitter := &fakeSubmitter{err: errors.New("order gateway down")}
	r := NewReconciler(fastConfig(), source, submitter, nil, nil)

	_, err := r.Run(context.Background(), weights.Vector{"BTC": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit trades")
}

func TestRun_AuditFailureDoesNotFailRun(t *testing.T) {
	source := &fakeSource{positions: map[string]float64{}, capital: 10_000}
	submitter := &fakeSubmitter{}
	recorder := &fakeRecorder{err: errors.New("db down")}
	r := NewReconciler(fastConfig(), source, submitter, recorder, nil)

	trades, err := r.Run(context.Background(), weights.Vector{"BTC": 0.5})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRun_NoTradesSkipsSubmission(t *testing.T) {
	source := &fakeSource{positions: map[string]float64{"BTC": 5000}, capital: 10_000}
	submitter := &fakeSubmitter{}
	r := NewReconciler(fastConfig(), source, submitter, nil, nil)

	trades, err := r.Run(context.Background(), weights.Vector{"BTC": 0.5})
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Empty(t, submitter.submitted)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Deadband = 1.0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CallTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())
}
