package thermal

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the finite pixels of a frame
type Stats struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	ValidPixels int     `json:"validPixels"`
}

func (f *Frame) Stats() Stats {
	valid := finiteValues(f.Pixels, nil)
	if len(valid) == 0 {
		return Stats{}
	}
	return Stats{
		Min:         floats.Min(valid),
		Max:         floats.Max(valid),
		Mean:        stat.Mean(valid, nil),
		Std:         stat.PopStdDev(valid, nil),
		ValidPixels: len(valid),
	}
}

// MeanFrame returns the per-pixel average of frames, which must all have the same shape.
// Non-finite pixels are left out of each pixel's average.
func MeanFrame(frames []*Frame) *Frame {
	if len(frames) == 0 {
		return nil
	}
	out := NewFrame(frames[0].Shape(), frames[0].Unit)
	count := make([]int, len(out.Pixels))
	sum := make([]float64, len(out.Pixels))
	for _, f := range frames {
		if f.Unit != out.Unit {
			f = f.In(out.Unit)
		}
		for i, v := range f.Pixels[:min(len(f.Pixels), len(sum))] {
			if isFinite(v) {
				sum[i] += float64(v)
				count[i]++
			}
		}
	}
	for i := range sum {
		if count[i] == 0 {
			out.Pixels[i] = float32(math.NaN())
		} else {
			out.Pixels[i] = float32(sum[i] / float64(count[i]))
		}
	}
	return out
}

// DisplayBounds returns the normalization range that keeps brightness constant across a batch:
// the 1st and 99th percentile of every pixel in the batch, widened by 5% on each side.
func DisplayBounds(frames []*Frame) (vmin, vmax float64) {
	return PercentileBounds(frames, 1, 99, 0.05)
}

// PercentileBounds computes the lowPct and highPct percentiles of all finite pixels in frames,
// and widens the range by margin * (high - low) on each side.
// Percentiles are linearly interpolated between the closest ranks.
// The returned range is never empty.
func PercentileBounds(frames []*Frame, lowPct, highPct, margin float64) (vmin, vmax float64) {
	var all []float64
	for _, f := range frames {
		all = finiteValues(f.Pixels, all)
	}
	if len(all) == 0 {
		return 0, 1
	}
	slices.Sort(all)
	vmin = Percentile(all, lowPct)
	vmax = Percentile(all, highPct)
	m := (vmax - vmin) * margin
	vmin -= m
	vmax += m
	if vmax <= vmin {
		vmax = vmin + 1
	}
	return
}

// Percentile of sorted values, with p in [0,100]
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	lo = max(0, min(lo, len(sorted)-1))
	hi = max(0, min(hi, len(sorted)-1))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func finiteValues(pixels []float32, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, 0, len(pixels))
	}
	for _, v := range pixels {
		if isFinite(v) {
			dst = append(dst, float64(v))
		}
	}
	return dst
}
