package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/sawpanic/factorport/internal/obs"
	"github.com/sawpanic/factorport/internal/pipeline"
	"github.com/sawpanic/factorport/internal/weights"
)

// computeEventVectors runs the pipeline for every rebalance date with a small
// fork-join worker pool. Each date's computation is independent; workers
// write only to their own result slots and results are combined once all
// workers finish.
func (s *Simulator) computeEventVectors(ctx context.Context, table *obs.Table, events []time.Time) (map[time.Time]weights.Vector, []*pipeline.DateOutcome, error) {
	workers := s.config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(events) {
		workers = len(events)
	}

	vectors := make([]weights.Vector, len(events))
	outcomes := make([]*pipeline.DateOutcome, len(events))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vectors[i], outcomes[i] = s.engine.TargetsFor(table, events[i])
			}
		}()
	}

	var err error
feed:
	for i := range events {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, nil, err
	}

	atEvents := make(map[time.Time]weights.Vector, len(events))
	for i, d := range events {
		if len(vectors[i]) > 0 {
			atEvents[d] = vectors[i]
		}
	}
	return atEvents, outcomes, nil
}
