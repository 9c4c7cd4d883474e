package thermal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitRoundTrip(t *testing.T) {
	for _, x := range []float64{-40, 0, 21.5, 36.6, 100, 273.15, 1000} {
		require.InDelta(t, x, CelsiusToKelvin(KelvinToCelsius(x)), 1e-9)
		require.InDelta(t, x, KelvinToCelsius(CelsiusToKelvin(x)), 1e-9)
	}
	require.Equal(t, 296.5, DeciKelvinToKelvin(2965))
	require.Equal(t, 2965, KelvinToDeciKelvin(296.5))
}

func TestFrameIn(t *testing.T) {
	f := NewFrame(Shape{Width: 2, Height: 1}, UnitKelvin)
	f.Pixels[0] = 273.15
	f.Pixels[1] = 300
	c := f.In(UnitCelsius)
	require.Equal(t, UnitCelsius, c.Unit)
	require.InDelta(t, 0, c.Pixels[0], 1e-4)
	require.InDelta(t, 26.85, c.Pixels[1], 1e-4)
	// source is untouched
	require.Equal(t, UnitKelvin, f.Unit)
	require.Equal(t, float32(300), f.Pixels[1])

	back := c.In(UnitKelvin)
	require.InDelta(t, 300, back.Pixels[1], 1e-4)
}

func TestCheckShape(t *testing.T) {
	f := NewFrame(Shape{Width: 60, Height: 40}, UnitKelvin)
	require.NoError(t, f.CheckShape(DefaultShape))
	require.ErrorIs(t, f.CheckShape(Shape{Width: 32, Height: 24}), ErrShapeMismatch)
}

func TestStats(t *testing.T) {
	f := NewFrame(Shape{Width: 5, Height: 1}, UnitCelsius)
	copy(f.Pixels, []float32{1, 2, 3, 4, float32(math.NaN())})
	s := f.Stats()
	require.Equal(t, 4, s.ValidPixels)
	require.Equal(t, 1.0, s.Min)
	require.Equal(t, 4.0, s.Max)
	require.InDelta(t, 2.5, s.Mean, 1e-9)
	require.InDelta(t, math.Sqrt(1.25), s.Std, 1e-9)
	require.Equal(t, 1, f.NonFinite())
}

func TestMeanFrame(t *testing.T) {
	a := NewFrame(Shape{Width: 2, Height: 1}, UnitCelsius)
	b := NewFrame(Shape{Width: 2, Height: 1}, UnitCelsius)
	copy(a.Pixels, []float32{10, 20})
	copy(b.Pixels, []float32{20, float32(math.Inf(1))})
	m := MeanFrame([]*Frame{a, b})
	require.Equal(t, []float32{15, 20}, m.Pixels)
	require.Nil(t, MeanFrame(nil))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	require.Equal(t, 1.0, Percentile(sorted, 0))
	require.Equal(t, 5.0, Percentile(sorted, 100))
	require.Equal(t, 3.0, Percentile(sorted, 50))
	require.InDelta(t, 1.04, Percentile(sorted, 1), 1e-9)
	require.InDelta(t, 4.96, Percentile(sorted, 99), 1e-9)
}

func TestDisplayBounds(t *testing.T) {
	shape := Shape{Width: 101, Height: 1}
	f := NewFrame(shape, UnitCelsius)
	for i := range f.Pixels {
		f.Pixels[i] = float32(i)
	}
	vmin, vmax := DisplayBounds([]*Frame{f})
	// p1 = 1, p99 = 99, margin = 0.05 * 98
	require.InDelta(t, 1-4.9, vmin, 1e-6)
	require.InDelta(t, 99+4.9, vmax, 1e-6)

	// A flat batch still yields a usable range
	flat := NewFrame(shape, UnitCelsius)
	vmin, vmax = DisplayBounds([]*Frame{flat})
	require.Equal(t, 0.0, vmin)
	require.Equal(t, 1.0, vmax)
}
