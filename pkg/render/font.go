package render

import (
	"image/color"
	"sync"

	"github.com/chewxy/math32"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	parsedFont     *truetype.Font
	parsedFontOnce sync.Once
)

func regularFont() *truetype.Font {
	parsedFontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			panic(err)
		}
		parsedFont = f
	})
	return parsedFont
}

// newFace returns a font face sized for an image that was upscaled by scale.
// basePx is the font size at the reference scale of 8.
// Faces cache glyphs internally, so each render creates its own.
func newFace(basePx float32, scale int) font.Face {
	size := math32.Max(8, basePx*float32(scale)/8)
	return truetype.NewFace(regularFont(), &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// textBox is the measured extent of a string: width, height above the baseline, and depth below it
type textBox struct {
	Width    int
	Height   int
	Baseline int
}

func measure(dc *gg.Context, face font.Face, s string) textBox {
	w, _ := dc.MeasureString(s)
	m := face.Metrics()
	return textBox{
		Width:    int(math32.Ceil(float32(w))),
		Height:   m.Ascent.Ceil(),
		Baseline: m.Descent.Ceil(),
	}
}

func fillRect(dc *gg.Context, x, y, w, h int, c color.RGBA) {
	if w <= 0 || h <= 0 {
		return
	}
	dc.SetRGB255(int(c.R), int(c.G), int(c.B))
	dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	dc.Fill()
}

func drawText(dc *gg.Context, s string, x, baselineY int, c color.RGBA) {
	dc.SetRGB255(int(c.R), int(c.G), int(c.B))
	dc.DrawString(s, float64(x), float64(baselineY))
}
