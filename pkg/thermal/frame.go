package thermal

import (
	"fmt"
	"math"
)

// Unit is the temperature unit of a frame's values
type Unit int

const (
	UnitCelsius Unit = iota
	UnitKelvin
)

func (u Unit) String() string {
	switch u {
	case UnitCelsius:
		return "celsius"
	case UnitKelvin:
		return "kelvin"
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Shape is the sensor resolution
type Shape struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultShape is the resolution of the 60x40 sensors that produce most of our data
var DefaultShape = Shape{Width: 60, Height: 40}

func (s Shape) Pixels() int {
	return s.Width * s.Height
}

func (s Shape) String() string {
	return fmt.Sprintf("%vx%v", s.Width, s.Height)
}

// Frame is one decoded temperature grid from a thermal sensor.
// Pixels are row-major, Height rows of Width values.
// A Frame is not modified after it is created. Conversions produce new frames.
type Frame struct {
	Width        int
	Height       int
	Unit         Unit
	Pixels       []float32
	Timestamp    float64 // Seconds. Only meaningful if HasTimestamp is true.
	HasTimestamp bool
}

func NewFrame(shape Shape, unit Unit) *Frame {
	return &Frame{
		Width:  shape.Width,
		Height: shape.Height,
		Unit:   unit,
		Pixels: make([]float32, shape.Pixels()),
	}
}

func (f *Frame) Shape() Shape {
	return Shape{Width: f.Width, Height: f.Height}
}

func (f *Frame) At(x, y int) float32 {
	return f.Pixels[y*f.Width+x]
}

// TimestampMS returns the frame timestamp in milliseconds
func (f *Frame) TimestampMS() int64 {
	return int64(math.Round(f.Timestamp * 1000))
}

// CheckShape returns ErrShapeMismatch if the frame does not have the given shape
func (f *Frame) CheckShape(shape Shape) error {
	if f.Width != shape.Width || f.Height != shape.Height || len(f.Pixels) != shape.Pixels() {
		return fmt.Errorf("%w: frame is %vx%v (%v pixels), sensor is %v", ErrShapeMismatch, f.Width, f.Height, len(f.Pixels), shape)
	}
	return nil
}

// NonFinite returns the number of NaN or Inf pixels
func (f *Frame) NonFinite() int {
	n := 0
	for _, v := range f.Pixels {
		if !isFinite(v) {
			n++
		}
	}
	return n
}

// In returns a copy of the frame expressed in the given unit
func (f *Frame) In(unit Unit) *Frame {
	c := *f
	c.Unit = unit
	c.Pixels = make([]float32, len(f.Pixels))
	switch {
	case f.Unit == unit:
		copy(c.Pixels, f.Pixels)
	case f.Unit == UnitKelvin && unit == UnitCelsius:
		for i, v := range f.Pixels {
			c.Pixels[i] = float32(KelvinToCelsius(float64(v)))
		}
	case f.Unit == UnitCelsius && unit == UnitKelvin:
		for i, v := range f.Pixels {
			c.Pixels[i] = float32(CelsiusToKelvin(float64(v)))
		}
	}
	return &c
}

// Flipped returns a copy of the frame, mirrored left to right
func (f *Frame) Flipped() *Frame {
	c := *f
	c.Pixels = make([]float32, len(f.Pixels))
	for y := 0; y < f.Height; y++ {
		row := f.Pixels[y*f.Width : (y+1)*f.Width]
		dst := c.Pixels[y*f.Width : (y+1)*f.Width]
		for x := range row {
			dst[f.Width-1-x] = row[x]
		}
	}
	return &c
}

// ZeroFrame is the all-zero placeholder that stands in for a missing frame
func ZeroFrame(shape Shape, unit Unit) *Frame {
	return NewFrame(shape, unit)
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
