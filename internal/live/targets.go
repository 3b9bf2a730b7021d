package live

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/metrics"
	"github.com/sawpanic/factorport/internal/obs"
	"github.com/sawpanic/factorport/internal/pipeline"
	"github.com/sawpanic/factorport/internal/weights"
)

// TargetComputer produces the live target vector for a date, consulting the
// weight cache per strategy before running the pipeline. Combination across
// strategies happens after cache resolution so capital redistribution always
// reflects the current active set, never a cached one.
type TargetComputer struct {
	engine    *pipeline.Engine
	cache     WeightCache
	ttl       time.Duration
	collector *metrics.Collector
}

// NewTargetComputer wires the computer. ttl should equal the strategy
// rebalance period.
func NewTargetComputer(engine *pipeline.Engine, cache WeightCache, ttl time.Duration, collector *metrics.Collector) *TargetComputer {
	if cache == nil {
		cache = NoopWeightCache{}
	}
	return &TargetComputer{engine: engine, cache: cache, ttl: ttl, collector: collector}
}

// Targets returns the combined target vector for the date.
func (tc *TargetComputer) Targets(ctx context.Context, table *obs.Table, date time.Time) (weights.Vector, error) {
	vectors := make(map[string]weights.Vector)
	missing := false

	for _, id := range tc.engine.StrategyIDs() {
		v, hit, err := tc.cache.Get(ctx, id, date)
		if err != nil {
			// Cache trouble degrades to recomputation, never to stale use.
			log.Warn().Err(err).Str("strategy", id).Msg("Weight cache unavailable")
			missing = true
			break
		}
		if !hit {
			missing = true
			break
		}
		if tc.collector != nil {
			tc.collector.CacheHits.Inc()
		}
		vectors[id] = v
	}

	if missing {
		if tc.collector != nil {
			tc.collector.CacheMisses.Inc()
		}
		computed, _ := tc.engine.StrategyVectors(table, date)
		for id, v := range computed {
			vectors[id] = v
			if err := tc.cache.Put(ctx, id, date, v, tc.ttl); err != nil {
				log.Warn().Err(err).Str("strategy", id).Msg("Weight cache write failed")
			}
		}
	}

	return tc.engine.Combine(vectors), nil
}
