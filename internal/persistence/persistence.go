// Package persistence defines the storage contracts for the live portfolio
// state and the trade audit log. The live Portfolio is the one piece of state
// that survives across runs; everything else is recomputed per invocation.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sawpanic/factorport/internal/live"
)

// ErrNoSnapshot is returned when no portfolio snapshot has been stored yet.
var ErrNoSnapshot = errors.New("no portfolio snapshot stored")

// Snapshot is the persisted live portfolio state at a point in time.
type Snapshot struct {
	AsOf      time.Time          `json:"as_of" db:"as_of"`
	Capital   float64            `json:"capital" db:"capital"`
	Positions map[string]float64 `json:"positions"`
}

// PortfolioRepo stores and retrieves portfolio snapshots.
type PortfolioRepo interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
	LatestSnapshot(ctx context.Context) (Snapshot, error)
}

// TradesRepo persists emitted reconciliation trades for audit.
type TradesRepo interface {
	Record(ctx context.Context, runID string, trades []live.Trade) error
}

// SnapshotPositionSource adapts a PortfolioRepo into the reconciler's
// position source, serving the latest persisted snapshot.
type SnapshotPositionSource struct {
	Repo PortfolioRepo
}

// Positions implements live.PositionSource.
func (s SnapshotPositionSource) Positions(ctx context.Context) (map[string]float64, float64, error) {
	snap, err := s.Repo.LatestSnapshot(ctx)
	if err != nil {
		return nil, 0, err
	}
	return snap.Positions, snap.Capital, nil
}
