package render

import (
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/fogleman/gg"
)

const (
	colorbarWidth  = 30
	colorbarMargin = 20 // From the right edge
	colorbarTop    = 50
	colorbarLabels = 5
)

// RawParams controls RenderRaw. VMin and VMax are in degrees Celsius.
type RawParams struct {
	VMin       float64
	VMax       float64
	Scale      int
	FrameIndex int
	TimeOrigin float64
}

// RenderRaw draws a frame with the Turbo colormap, an information panel, and a colorbar legend.
// The frame is converted to Celsius first.
func RenderRaw(frame *thermal.Frame, p RawParams) *image.RGBA {
	scale := max(1, p.Scale)
	celsius := frame.In(thermal.UnitCelsius)
	norm := Normalize(celsius, p.VMin, p.VMax)

	src := cimg.NewImage(frame.Width, frame.Height, cimg.PixelFormatRGB)
	for y := 0; y < frame.Height; y++ {
		line := src.Pixels[y*src.Stride:]
		for x := 0; x < frame.Width; x++ {
			c := TurboByte(norm[y*frame.Width+x])
			line[x*3] = c.R
			line[x*3+1] = c.G
			line[x*3+2] = c.B
		}
	}
	img := toRGBA(upscale(src, scale))
	dc := gg.NewContextForRGBA(img)

	infoFace := newFace(18, scale)
	dc.SetFontFace(infoFace)
	lines := []string{
		fmt.Sprintf("Frame: %d", p.FrameIndex),
		fmt.Sprintf("Time: %.3fs", celsius.Timestamp-p.TimeOrigin),
		fmt.Sprintf("Temp Range: %.1fC to %.1fC", p.VMin, p.VMax),
	}
	y := 30
	for _, s := range lines {
		tb := measure(dc, infoFace, s)
		fillRect(dc, 10, y-tb.Height-5, tb.Width+10, tb.Height+tb.Baseline+10, Black)
		drawText(dc, s, 15, y, White)
		y += tb.Height + 15
	}

	drawColorbar(dc, p.VMin, p.VMax, scale)
	return img
}

// Vertical bar from hot (top) to cold (bottom), with evenly spaced temperature labels
func drawColorbar(dc *gg.Context, vmin, vmax float64, scale int) {
	height := dc.Height() - 100
	x0 := dc.Width() - colorbarWidth - colorbarMargin
	if height < colorbarLabels || x0 < 0 {
		return
	}
	for i := 0; i < height; i++ {
		v := uint8(255 - (255*i)/max(1, height-1))
		fillRect(dc, x0, colorbarTop+i, colorbarWidth, 1, TurboByte(v))
	}

	face := newFace(11, scale)
	dc.SetFontFace(face)
	for i := 0; i < colorbarLabels; i++ {
		t := vmax - (vmax-vmin)*float64(i)/float64(colorbarLabels-1)
		y := colorbarTop + i*height/(colorbarLabels-1)
		s := fmt.Sprintf("%.1fC", t)
		tb := measure(dc, face, s)
		fillRect(dc, x0+colorbarWidth+5, y-tb.Height-2, tb.Width+10, tb.Height+7, Black)
		drawText(dc, s, x0+colorbarWidth+10, y, White)
	}
}
