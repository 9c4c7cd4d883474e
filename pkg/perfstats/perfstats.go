// Package perfstats records how long rendering and encoding take, so that the cost of
// a larger upscale or a slower machine is visible in the logs and the preview server.
package perfstats

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// PerfStats holds a moving average of each measured operation, in nanoseconds per frame
type PerfStats struct {
	RenderNanoseconds atomic.Uint64
	EncodeNanoseconds atomic.Uint64
	FetchNanoseconds  atomic.Uint64
}

var Stats = PerfStats{}

// Update folds value into the moving average stored in stat
func Update(stat *atomic.Uint64, value time.Duration) {
	vu := uint64(max(0, value.Nanoseconds()))
	// This is sampled stats, so a lost update between Load and Store does not matter
	if stat.Load() == 0 {
		stat.Store(vu)
	} else {
		stat.Store((stat.Load()*63 + vu) >> 6)
	}
}

// Since is shorthand for Update(stat, time.Since(start))
func Since(stat *atomic.Uint64, start time.Time) {
	Update(stat, time.Since(start))
}

func millis(stat *atomic.Uint64) float64 {
	return float64(stat.Load()) / 1e6
}

// Snapshot is the JSON form of PerfStats
type Snapshot struct {
	RenderMS float64 `json:"renderMS"`
	EncodeMS float64 `json:"encodeMS"`
	FetchMS  float64 `json:"fetchMS"`
}

func (s *PerfStats) Snapshot() Snapshot {
	return Snapshot{
		RenderMS: millis(&s.RenderNanoseconds),
		EncodeMS: millis(&s.EncodeNanoseconds),
		FetchMS:  millis(&s.FetchNanoseconds),
	}
}

func (s *PerfStats) String() string {
	b := &strings.Builder{}
	snap := s.Snapshot()
	fmt.Fprintf(b, "Render: %0.2f ms/frame, encode: %0.2f ms/frame, fetch: %0.2f ms", snap.RenderMS, snap.EncodeMS, snap.FetchMS)
	return b.String()
}

// TimeAccumulator sums how long something took, over a number of samples
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}
