package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/persistence"
)

type stubRepo struct {
	snapshot persistence.Snapshot
	err      error
}

func (s *stubRepo) SaveSnapshot(ctx context.Context, snap persistence.Snapshot) error {
	return nil
}

func (s *stubRepo) LatestSnapshot(ctx context.Context) (persistence.Snapshot, error) {
	return s.snapshot, s.err
}

func serve(t *testing.T, repo persistence.PortfolioRepo, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	server := NewServer(DefaultServerConfig(), metrics.NewCollector(), repo)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	server.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, nil, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector()
	collector.DatesProcessed.Inc()
	server := NewServer(DefaultServerConfig(), collector, nil)

	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "factorport_dates_processed_total")
}

func TestPortfolio(t *testing.T) {
	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubRepo{snapshot: persistence.Snapshot{
		AsOf: asOf, Capital: 10_000, Positions: map[string]float64{"BTC": 5000},
	}}

	rec := serve(t, repo, http.MethodGet, "/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap persistence.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 10_000.0, snap.Capital)
	assert.Equal(t, 5000.0, snap.Positions["BTC"])
}

func TestPortfolio_NoStoreConfigured(t *testing.T) {
	rec := serve(t, nil, http.MethodGet, "/portfolio")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolio_NoSnapshotYet(t *testing.T) {
	rec := serve(t, &stubRepo{err: persistence.ErrNoSnapshot}, http.MethodGet, "/portfolio")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolio_StoreError(t *testing.T) {
	rec := serve(t, &stubRepo{err: errors.New("db down")}, http.MethodGet, "/portfolio")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, nil, http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
