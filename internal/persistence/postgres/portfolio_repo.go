// Package postgres implements the persistence contracts on PostgreSQL via
// sqlx. Every query runs under an explicit timeout.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/factorport/internal/persistence"
)

// portfolioRepo implements persistence.PortfolioRepo.
type portfolioRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPortfolioRepo creates a PostgreSQL portfolio snapshot repository.
func NewPortfolioRepo(db *sqlx.DB, timeout time.Duration) persistence.PortfolioRepo {
	return &portfolioRepo{db: db, timeout: timeout}
}

// SaveSnapshot appends a new snapshot row. Positions are stored as JSONB.
func (r *portfolioRepo) SaveSnapshot(ctx context.Context, snapshot persistence.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	positionsJSON, err := json.Marshal(snapshot.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	query := `
		INSERT INTO portfolio_snapshots (as_of, capital, positions)
		VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, snapshot.AsOf, snapshot.Capital, positionsJSON); err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot by as_of.
func (r *portfolioRepo) LatestSnapshot(ctx context.Context) (persistence.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT as_of, capital, positions
		FROM portfolio_snapshots
		ORDER BY as_of DESC
		LIMIT 1`

	var snap persistence.Snapshot
	var positionsJSON []byte
	err := r.db.QueryRowxContext(ctx, query).Scan(&snap.AsOf, &snap.Capital, &positionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Snapshot{}, persistence.ErrNoSnapshot
	}
	if err != nil {
		return persistence.Snapshot{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	if err := json.Unmarshal(positionsJSON, &snap.Positions); err != nil {
		return persistence.Snapshot{}, fmt.Errorf("decode positions: %w", err)
	}
	return snap, nil
}
