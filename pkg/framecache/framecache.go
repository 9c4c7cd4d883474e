package framecache

import (
	"slices"

	"github.com/cyclopcam/thermview/pkg/thermal"
)

// FrameCache holds decoded frames, keyed by their timestamp in milliseconds,
// so that repeated lookups during an export don't go back to the database.
// There is no eviction. The cache lives as long as one session, and grows with it.
// FrameCache is not safe for concurrent use. Callers that share one must synchronize.
type FrameCache struct {
	MemoryUsed int // Approximate bytes of pixel data held

	frames map[int64]*thermal.Frame
}

func NewFrameCache() *FrameCache {
	return &FrameCache{
		frames: make(map[int64]*thermal.Frame),
	}
}

// Return the frame or nil
func (f *FrameCache) GetFrame(timeMS int64) *thermal.Frame {
	return f.frames[timeMS]
}

// Add a frame to the cache. If a frame already exists at timeMS, it is replaced.
func (f *FrameCache) AddFrame(timeMS int64, frame *thermal.Frame) {
	if old := f.frames[timeMS]; old != nil {
		f.MemoryUsed -= frameBytes(old)
	}
	f.frames[timeMS] = frame
	f.MemoryUsed += frameBytes(frame)
}

func (f *FrameCache) Has(timeMS int64) bool {
	_, ok := f.frames[timeMS]
	return ok
}

func (f *FrameCache) Len() int {
	return len(f.frames)
}

// Times returns every cached timestamp, in ascending order
func (f *FrameCache) Times() []int64 {
	times := make([]int64, 0, len(f.frames))
	for t := range f.frames {
		times = append(times, t)
	}
	slices.Sort(times)
	return times
}

// Range returns the cached frames with startMS <= time <= endMS, in time order
func (f *FrameCache) Range(startMS, endMS int64) []*thermal.Frame {
	out := []*thermal.Frame{}
	for _, t := range f.Times() {
		if t >= startMS && t <= endMS {
			out = append(out, f.frames[t])
		}
	}
	return out
}

func frameBytes(frame *thermal.Frame) int {
	return len(frame.Pixels) * 4
}
