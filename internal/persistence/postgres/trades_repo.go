package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/factorport/internal/live"
	"github.com/sawpanic/factorport/internal/persistence"
)

// tradesRepo implements persistence.TradesRepo.
type tradesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradesRepo creates a PostgreSQL trade audit repository.
func NewTradesRepo(db *sqlx.DB, timeout time.Duration) persistence.TradesRepo {
	return &tradesRepo{db: db, timeout: timeout}
}

// Record inserts all trades of one reconciliation run atomically.
func (r *tradesRepo) Record(ctx context.Context, runID string, trades []live.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trade audit tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO reconciliation_trades
			(id, run_id, ts, asset, current_notional, target_notional, delta_notional)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, t := range trades {
		if _, err := tx.ExecContext(ctx, query,
			t.ID, runID, t.Timestamp, t.Asset,
			t.CurrentNotional, t.TargetNotional, t.DeltaNotional); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("duplicate trade %s: %w", t.ID, err)
			}
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trade audit tx: %w", err)
	}
	return nil
}
