package live

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSubmitter writes the trade list to the log instead of an execution
// venue. It is the reference TradeSubmitter; deployments wire their execution
// collaborator behind the same interface.
type LogSubmitter struct{}

// Submit implements TradeSubmitter.
func (LogSubmitter) Submit(_ context.Context, trades []Trade) error {
	for _, t := range trades {
		log.Info().
			Str("trade_id", t.ID).
			Str("asset", t.Asset).
			Float64("current", t.CurrentNotional).
			Float64("target", t.TargetNotional).
			Float64("delta", t.DeltaNotional).
			Msg("Trade emitted")
	}
	return nil
}
