package render

import (
	"image"

	"github.com/fogleman/gg"
)

// Legend draws a swatch and name for each palette category that appears in counts.
// counts is keyed by "category/subcategory", as produced by annotation.CountInstances.
func Legend(palette *Palette, counts map[string]int, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(img)
	fillRect(dc, 0, 0, width, height, Black)
	face := newFace(14, DefaultScale)
	dc.SetFontFace(face)
	drawText(dc, "Categories:", 10, 20, White)

	present := map[string]bool{}
	for key, n := range counts {
		if n > 0 {
			present[Category(key)] = true
		}
	}

	y := 40
	for _, cat := range palette.Categories() {
		if !present[cat] {
			continue
		}
		fillRect(dc, 10, y, 20, 15, palette.Color(cat))
		drawText(dc, cat, 40, y+12, White)
		y += 20
	}
	return img
}
