package align

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Strategy selects the batch assignment algorithm
type Strategy int

const (
	// StrategyGreedy visits queries in order, and gives each one the first unconsumed
	// candidate within tolerance, even if a closer one is available.
	// This is the historical behaviour, and what match-rate statistics are calibrated against.
	StrategyGreedy Strategy = iota

	// StrategyNearest visits queries in order, and gives each one the closest unconsumed candidate.
	StrategyNearest

	// StrategyOptimal finds the assignment with the most matches, and the least total
	// time difference among those.
	StrategyOptimal
)

func (s Strategy) String() string {
	switch s {
	case StrategyGreedy:
		return "greedy"
	case StrategyNearest:
		return "nearest"
	case StrategyOptimal:
		return "optimal"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "greedy":
		return StrategyGreedy, nil
	case "nearest":
		return StrategyNearest, nil
	case "optimal", "hungarian":
		return StrategyOptimal, nil
	}
	return StrategyGreedy, fmt.Errorf("Unknown alignment strategy '%v' (expected greedy, nearest or optimal)", s)
}

type BatchOptions struct {
	ToleranceMS int64
	Strategy    Strategy
	Inclusive   bool // Accept a difference equal to ToleranceMS
}

func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		ToleranceMS: DefaultToleranceMS,
		Strategy:    StrategyGreedy,
	}
}

func (o BatchOptions) accept(delta int64) bool {
	if o.Inclusive {
		return delta <= o.ToleranceMS
	}
	return delta < o.ToleranceMS
}

// BatchResult assigns each query to at most one candidate, and each candidate to at most one query
type BatchResult struct {
	Assigned  []int   // Assigned[query] is a candidate index, or -1
	DeltaMS   []int64 // DeltaMS[query] is the absolute time difference, if assigned
	Matched   int
	Unmatched int
}

// Candidate returns the candidate assigned to query q, or -1
func (b *BatchResult) Candidate(q int) int {
	return b.Assigned[q]
}

// MatchBatch assigns queries to candidates. Neither slice needs to be sorted.
func MatchBatch(queries, candidates []int64, opts BatchOptions) BatchResult {
	res := BatchResult{
		Assigned: make([]int, len(queries)),
		DeltaMS:  make([]int64, len(queries)),
	}
	for i := range res.Assigned {
		res.Assigned[i] = -1
	}

	switch opts.Strategy {
	case StrategyOptimal:
		matchOptimal(queries, candidates, opts, &res)
	case StrategyNearest:
		matchSequential(queries, candidates, opts, true, &res)
	default:
		matchSequential(queries, candidates, opts, false, &res)
	}

	for q, c := range res.Assigned {
		if c == -1 {
			res.Unmatched++
		} else {
			res.Matched++
			res.DeltaMS[q] = absDelta(queries[q], candidates[c])
		}
	}
	return res
}

func matchSequential(queries, candidates []int64, opts BatchOptions, nearest bool, res *BatchResult) {
	consumed := make([]bool, len(candidates))
	for q, qt := range queries {
		best := -1
		var bestDelta int64
		for c, ct := range candidates {
			if consumed[c] {
				continue
			}
			d := absDelta(qt, ct)
			if !opts.accept(d) {
				continue
			}
			if !nearest {
				best = c
				break
			}
			if best == -1 || d < bestDelta {
				best = c
				bestDelta = d
			}
		}
		if best != -1 {
			consumed[best] = true
			res.Assigned[q] = best
		}
	}
}

// matchOptimal finds the assignment with the most matches, and the least total delta among those.
// On a line, swapping the partners of two crossing pairs never increases either delta beyond the
// larger of the two, and never increases their sum. So some optimal assignment has no crossings,
// and a dynamic program over both sorted sequences is exact.
func matchOptimal(queries, candidates []int64, opts BatchOptions, res *BatchResult) {
	if len(queries) == 0 || len(candidates) == 0 {
		return
	}
	for _, run := range splitRuns(queries, candidates, opts) {
		matchRun(run, opts, res)
	}
}

// point is a query or candidate time, with its index in the caller's slice
type point struct {
	time  int64
	index int
}

// run is a stretch of time that no acceptable pair crosses
type run struct {
	queries    []point
	candidates []point
}

// splitRuns sorts both sides, and cuts them wherever consecutive times are further apart than
// the tolerance. This keeps the dynamic program small when the data has gaps.
func splitRuns(queries, candidates []int64, opts BatchOptions) []run {
	type tagged struct {
		point
		isQuery bool
	}
	all := make([]tagged, 0, len(queries)+len(candidates))
	for i, t := range queries {
		all = append(all, tagged{point{t, i}, true})
	}
	for i, t := range candidates {
		all = append(all, tagged{point{t, i}, false})
	}
	slices.SortStableFunc(all, func(a, b tagged) int {
		return cmp.Compare(a.time, b.time)
	})

	runs := []run{}
	cur := run{}
	for i, p := range all {
		if i != 0 && !opts.accept(p.time-all[i-1].time) {
			if len(cur.queries) != 0 && len(cur.candidates) != 0 {
				runs = append(runs, cur)
			}
			cur = run{}
		}
		if p.isQuery {
			cur.queries = append(cur.queries, p.point)
		} else {
			cur.candidates = append(cur.candidates, p.point)
		}
	}
	if len(cur.queries) != 0 && len(cur.candidates) != 0 {
		runs = append(runs, cur)
	}
	return runs
}

type score struct {
	matched int
	delta   int64
}

func (a score) better(b score) bool {
	return a.matched > b.matched || (a.matched == b.matched && a.delta < b.delta)
}

const (
	moveSkipQuery uint8 = iota
	moveSkipCandidate
	movePair
)

func matchRun(r run, opts BatchOptions, res *BatchResult) {
	nq, nc := len(r.queries), len(r.candidates)
	// prev[j] and cur[j] are the best scores using the first i-1 (or i) queries and the first j candidates
	prev := make([]score, nc+1)
	cur := make([]score, nc+1)
	moves := make([]uint8, nq*nc)
	for i := 1; i <= nq; i++ {
		cur[0] = score{}
		qt := r.queries[i-1].time
		for j := 1; j <= nc; j++ {
			best := prev[j]
			move := moveSkipQuery
			if cur[j-1].better(best) {
				best = cur[j-1]
				move = moveSkipCandidate
			}
			if d := absDelta(qt, r.candidates[j-1].time); opts.accept(d) {
				s := score{prev[j-1].matched + 1, prev[j-1].delta + d}
				if s.better(best) {
					best = s
					move = movePair
				}
			}
			cur[j] = best
			moves[(i-1)*nc+j-1] = move
		}
		prev, cur = cur, prev
	}

	for i, j := nq, nc; i > 0 && j > 0; {
		switch moves[(i-1)*nc+j-1] {
		case movePair:
			res.Assigned[r.queries[i-1].index] = r.candidates[j-1].index
			i--
			j--
		case moveSkipQuery:
			i--
		default:
			j--
		}
	}
}
