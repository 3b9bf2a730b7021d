package weights

// EqualWeight distributes each side's allocation uniformly across its assets.
// A side with zero assets keeps its allocation undistributed; the portfolio
// layer decides whether to redistribute that capital (strategy inactivity).
type EqualWeight struct{}

// Name implements Method.
func (EqualWeight) Name() string { return MethodEqual }

// Weights implements Method.
func (EqualWeight) Weights(req Request) (Vector, *Report, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	report := newReport(MethodEqual)
	out := make(Vector, len(req.Long)+len(req.Short))
	merge(out, equalSide(req.Long, req.LongAllocation, false))
	merge(out, equalSide(req.Short, req.ShortAllocation, true))
	return out, report, nil
}

func equalSide(assets []string, allocation float64, short bool) Vector {
	if len(assets) == 0 {
		return nil
	}
	scores := make([]float64, len(assets))
	for i := range scores {
		scores[i] = 1
	}
	return scaleSide(assets, scores, allocation, short)
}
