package render

import (
	"image/color"
	"strings"
)

// Palette maps annotation categories to box colors.
// Categories that are not in the palette are drawn in the Fallback color.
type Palette struct {
	Fallback color.RGBA

	order  []string
	colors map[string]color.RGBA
}

var (
	Red     = color.RGBA{255, 0, 0, 255}
	Green   = color.RGBA{0, 255, 0, 255}
	Blue    = color.RGBA{0, 0, 255, 255}
	Yellow  = color.RGBA{255, 255, 0, 255}
	Cyan    = color.RGBA{0, 255, 255, 255}
	Magenta = color.RGBA{255, 0, 255, 255}
	White   = color.RGBA{255, 255, 255, 255}
	Black   = color.RGBA{0, 0, 0, 255}
)

// DefaultPalette returns a new palette with the standard category colors
func DefaultPalette() *Palette {
	p := NewPalette(White)
	p.Set("person", Red)
	p.Set("furniture", Blue)
	p.Set("object", Green)
	p.Set("building", Yellow)
	p.Set("environment", Cyan)
	p.Set("appliance", Magenta)
	return p
}

func NewPalette(fallback color.RGBA) *Palette {
	return &Palette{
		Fallback: fallback,
		colors:   map[string]color.RGBA{},
	}
}

func (p *Palette) Set(category string, c color.RGBA) {
	if _, ok := p.colors[category]; !ok {
		p.order = append(p.order, category)
	}
	p.colors[category] = c
}

// Color returns the color of category, or Fallback
func (p *Palette) Color(category string) color.RGBA {
	if c, ok := p.colors[category]; ok {
		return c
	}
	return p.Fallback
}

// Has returns true if category has its own color
func (p *Palette) Has(category string) bool {
	_, ok := p.colors[category]
	return ok
}

// Categories returns the categories with their own color, in the order they were added
func (p *Palette) Categories() []string {
	return append([]string(nil), p.order...)
}

// Category returns the category part of a "category/subcategory" key
func Category(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}
