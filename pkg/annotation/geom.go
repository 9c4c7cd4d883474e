package annotation

import (
	"fmt"
	"math"
)

// BBox is a normalized YOLO style box: center x, center y, width, height, each in [0,1]
type BBox [4]float64

func (b BBox) CX() float64 { return b[0] }
func (b BBox) CY() float64 { return b[1] }
func (b BBox) W() float64  { return b[2] }
func (b BBox) H() float64  { return b[3] }

func (b BBox) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f, %.3f)", b[0], b[1], b[2], b[3])
}

// Absorbs representation error, so that 0.1 * 480 is 48 and not 47
const pixelEpsilon = 1e-6

// ToPixels converts the box to a pixel rectangle on an image of the given size.
// Coordinates are truncated toward the top-left.
func (b BBox) ToPixels(imgWidth, imgHeight int) Rect {
	w := float64(imgWidth)
	h := float64(imgHeight)
	return Rect{
		X:      floorPx((b.CX() - b.W()/2) * w),
		Y:      floorPx((b.CY() - b.H()/2) * h),
		Width:  floorPx(b.W() * w),
		Height: floorPx(b.H() * h),
	}
}

func floorPx(v float64) int {
	return int(math.Floor(v + pixelEpsilon))
}

// Rect is a pixel rectangle
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) X2() int { return r.X + r.Width }
func (r Rect) Y2() int { return r.Y + r.Height }

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X2(), b.X2())
	y2 := min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float64 {
	inter := r.Intersection(b).Area()
	union := r.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
