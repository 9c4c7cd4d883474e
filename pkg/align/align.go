// Package align matches frame timestamps to annotation timestamps (or the reverse) within a tolerance.
package align

// DefaultToleranceMS is the largest time difference that we consider a match, exclusive
const DefaultToleranceMS = 100

// Candidate is one timestamped item that a query time can be matched to
type Candidate[T any] struct {
	TimeMS int64
	Value  T
}

// Result is the outcome of matching one query time.
// If Matched is false, the other fields are meaningless.
type Result[T any] struct {
	Matched   bool
	Index     int // Index into the candidate slice
	Candidate Candidate[T]
	DeltaMS   int64 // Absolute time difference
}

// Match finds the candidate closest to queryMS, and accepts it only if the
// difference is strictly less than toleranceMS.
// When two candidates are equally close, the one that appears first in candidates wins.
// This tie-break depends on the order of candidates.
func Match[T any](queryMS int64, candidates []Candidate[T], toleranceMS int64) Result[T] {
	best := -1
	var bestDelta int64
	for i := range candidates {
		d := absDelta(candidates[i].TimeMS, queryMS)
		if best == -1 || d < bestDelta {
			best = i
			bestDelta = d
		}
	}
	if best == -1 || bestDelta >= toleranceMS {
		return Result[T]{}
	}
	return Result[T]{
		Matched:   true,
		Index:     best,
		Candidate: candidates[best],
		DeltaMS:   bestDelta,
	}
}

// MatchTimes is Match for bare timestamps
func MatchTimes(queryMS int64, times []int64, toleranceMS int64) Result[struct{}] {
	return Match(queryMS, Candidates(times), toleranceMS)
}

// Candidates wraps bare timestamps
func Candidates(times []int64) []Candidate[struct{}] {
	c := make([]Candidate[struct{}], len(times))
	for i, t := range times {
		c[i].TimeMS = t
	}
	return c
}

func absDelta(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
