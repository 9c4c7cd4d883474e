// Package render draws thermal frames and their annotations as display images.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/gen"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// DefaultScale turns a 60x40 sensor frame into a 480x320 image
const DefaultScale = 8

// Params controls Render. VMin and VMax are in the frame's unit, and should be computed
// once per batch (see thermal.DisplayBounds) so that brightness is stable across a video.
type Params struct {
	VMin       float64
	VMax       float64
	Scale      int
	FrameIndex int
	TimeOrigin float64  // Subtracted from the frame timestamp in the overlay
	Palette    *Palette // nil for DefaultPalette
}

// LineThickness is the box outline width for an image upscaled by scale
func LineThickness(scale int) int {
	return max(2, 2*(scale/4))
}

// Render produces the annotated display image of one frame.
// rec may be nil, in which case only the frame and its overlay are drawn.
// The output is scale times larger than the frame. Render has no side effects.
func Render(frame *thermal.Frame, rec *annotation.Record, p Params) *image.RGBA {
	scale := max(1, p.Scale)
	palette := p.Palette
	if palette == nil {
		palette = DefaultPalette()
	}

	// Scale up before drawing anything, so that lines and text are sized for the output
	gray := Normalize(frame, p.VMin, p.VMax)
	img := toRGBA(upscale(grayToRGB(gray, frame.Width, frame.Height), scale))

	dc := gg.NewContextForRGBA(img)
	face := newFace(14, scale)
	dc.SetFontFace(face)

	if rec != nil {
		thickness := LineThickness(scale)
		for i := range rec.Objects {
			obj := &rec.Objects[i]
			c := palette.Color(obj.Category)
			box := obj.BBox.ToPixels(img.Rect.Dx(), img.Rect.Dy())
			drawBox(dc, box, thickness, c)
			drawLabel(dc, face, box, Label(obj), c)
		}
	}

	overlay := fmt.Sprintf("Frame %d | Time: %.3fs", p.FrameIndex, frame.Timestamp-p.TimeOrigin)
	drawOverlay(dc, face, overlay)
	return img
}

// Label is the abbreviated text drawn above an object's box
func Label(obj *annotation.Object) string {
	return fmt.Sprintf("%s/%s #%d", gen.Truncate(obj.Category, 3), gen.Truncate(obj.Subcategory, 6), obj.ObjectID)
}

// The outline is centered on the box edges
func drawBox(dc *gg.Context, r annotation.Rect, thickness int, c color.RGBA) {
	h := thickness / 2
	fillRect(dc, r.X-h, r.Y-h, r.Width+thickness, thickness, c)  // top
	fillRect(dc, r.X-h, r.Y2()-h, r.Width+thickness, thickness, c) // bottom
	fillRect(dc, r.X-h, r.Y-h, thickness, r.Height+thickness, c)   // left
	fillRect(dc, r.X2()-h, r.Y-h, thickness, r.Height+thickness, c) // right
}

// Label text sits on a black background just above the box, pushed down if it would leave the image
func drawLabel(dc *gg.Context, face font.Face, r annotation.Rect, text string, c color.RGBA) {
	tb := measure(dc, face, text)
	bgWidth := tb.Width + 2
	x := gen.Clamp(r.X, 0, max(0, dc.Width()-bgWidth))
	yText := max(r.Y-5, tb.Height+tb.Baseline+2)
	fillRect(dc, x, yText-tb.Height-tb.Baseline-2, bgWidth, tb.Height+2*tb.Baseline+2, Black)
	drawText(dc, text, x+1, yText-tb.Baseline-1, c)
}

func drawOverlay(dc *gg.Context, face font.Face, text string) {
	const padding = 5
	tb := measure(dc, face, text)
	fillRect(dc, padding, padding, tb.Width+padding, tb.Height+tb.Baseline+padding, Black)
	drawText(dc, text, padding*2, padding+tb.Height, White)
}
