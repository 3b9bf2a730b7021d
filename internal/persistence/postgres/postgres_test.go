package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/factorport/internal/live"
	"github.com/sawpanic/factorport/internal/persistence"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestSaveSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPortfolioRepo(db, 5*time.Second)

	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	positions := map[string]float64{"BTC": 5000, "ETH": -2000}
	positionsJSON, err := json.Marshal(positions)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO portfolio_snapshots").
		WithArgs(asOf, 10_000.0, positionsJSON).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.SaveSnapshot(context.Background(), persistence.Snapshot{
		AsOf: asOf, Capital: 10_000, Positions: positions,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPortfolioRepo(db, 5*time.Second)

	asOf := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"as_of", "capital", "positions"}).
		AddRow(asOf, 10_000.0, []byte(`{"BTC":5000}`))
	mock.ExpectQuery("SELECT as_of, capital, positions").WillReturnRows(rows)

	snap, err := repo.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, asOf, snap.AsOf)
	assert.Equal(t, 10_000.0, snap.Capital)
	assert.Equal(t, 5000.0, snap.Positions["BTC"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshot_NoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPortfolioRepo(db, 5*time.Second)

	mock.ExpectQuery("SELECT as_of, capital, positions").
		WillReturnRows(sqlmock.NewRows([]string{"as_of", "capital", "positions"}))

	_, err := repo.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, persistence.ErrNoSnapshot)
}

func sampleTrades(n int) []live.Trade {
	ts := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	trades := make([]live.Trade, n)
	for i := range trades {
		trades[i] = live.Trade{
			ID:              "trade-" + string(rune('a'+i)),
			Asset:           "BTC",
			CurrentNotional: 1000,
			TargetNotional:  1500,
			DeltaNotional:   500,
			Timestamp:       ts,
		}
	}
	return trades
}

func TestTradesRecord_CommitsAllRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTradesRepo(db, 5*time.Second)
	trades := sampleTrades(2)

	mock.ExpectBegin()
	for _, tr := range trades {
		mock.ExpectExec("INSERT INTO reconciliation_trades").
			WithArgs(tr.ID, "run-1", tr.Timestamp, tr.Asset, tr.CurrentNotional, tr.TargetNotional, tr.DeltaNotional).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Record(context.Background(), "run-1", trades))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradesRecord_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTradesRepo(db, 5*time.Second)
	trades := sampleTrades(2)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reconciliation_trades").
		WithArgs(trades[0].ID, "run-1", trades[0].Timestamp, trades[0].Asset,
			trades[0].CurrentNotional, trades[0].TargetNotional, trades[0].DeltaNotional).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), "run-1", trades)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradesRecord_DuplicateTrade(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTradesRepo(db, 5*time.Second)
	trades := sampleTrades(1)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reconciliation_trades").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Record(context.Background(), "run-1", trades)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate trade")
}

func TestTradesRecord_EmptyListIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTradesRepo(db, 5*time.Second)

	require.NoError(t, repo.Record(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
