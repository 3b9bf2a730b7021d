package backtest

import (
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/pipeline"
)

// QualitySummary reports how much data was excluded during a run and why, so
// a long backtest that silently skipped half its universe cannot pass for a
// clean one.
type QualitySummary struct {
	DatesProcessed    int            `json:"dates_processed"`
	DegenerateDates   int            `json:"degenerate_dates"`
	ExclusionsByCause map[string]int `json:"exclusions_by_cause"`
	FallbacksTaken    map[string]int `json:"fallbacks_taken"` // "from->to" counts
}

func summarizeQuality(outcomes []*pipeline.DateOutcome) QualitySummary {
	q := QualitySummary{
		ExclusionsByCause: make(map[string]int),
		FallbacksTaken:    make(map[string]int),
	}
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		q.DatesProcessed++
		for _, so := range o.Strategies {
			if so.Degenerate {
				q.DegenerateDates++
			}
			for _, ex := range so.Exclusions {
				q.ExclusionsByCause[ex.Reason]++
			}
			if so.Report != nil {
				for _, tr := range so.Report.Path {
					q.FallbacksTaken[tr.From+"->"+tr.To]++
				}
			}
		}
	}
	return q
}

func (q QualitySummary) log() {
	event := log.Info()
	if q.DegenerateDates > 0 || len(q.ExclusionsByCause) > 0 {
		event = log.Warn()
	}
	event.
		Int("dates", q.DatesProcessed).
		Int("degenerate_dates", q.DegenerateDates).
		Interface("exclusions", q.ExclusionsByCause).
		Interface("fallbacks", q.FallbacksTaken).
		Msg("Data quality summary")
}
