package align

// MinAcceptableMatchRate is the match rate below which a dataset should be inspected before training
const MinAcceptableMatchRate = 0.9

// MatchStats summarizes how well two timestamp streams line up
type MatchStats struct {
	Total       int     `json:"total"`
	Matched     int     `json:"matched"`
	Rate        float64 `json:"rate"`
	MeanDeltaMS float64 `json:"meanDeltaMS"`
	MaxDeltaMS  int64   `json:"maxDeltaMS"`
}

func (s MatchStats) Acceptable() bool {
	return s.Total > 0 && s.Rate >= MinAcceptableMatchRate
}

// Verify runs MatchBatch and summarizes the result
func Verify(queries, candidates []int64, opts BatchOptions) MatchStats {
	return Summarize(MatchBatch(queries, candidates, opts))
}

func Summarize(res BatchResult) MatchStats {
	s := MatchStats{
		Total:   len(res.Assigned),
		Matched: res.Matched,
	}
	if s.Total == 0 {
		return s
	}
	s.Rate = float64(s.Matched) / float64(s.Total)
	sum := int64(0)
	for q, c := range res.Assigned {
		if c == -1 {
			continue
		}
		sum += res.DeltaMS[q]
		s.MaxDeltaMS = max(s.MaxDeltaMS, res.DeltaMS[q])
	}
	if s.Matched > 0 {
		s.MeanDeltaMS = float64(sum) / float64(s.Matched)
	}
	return s
}
