package render

import (
	"image/color"

	"github.com/chewxy/math32"
)

// Turbo maps v in [0,1] to the Turbo colormap, using Google's polynomial approximation
func Turbo(v float32) color.RGBA {
	x := math32.Min(1, math32.Max(0, v))
	x2 := x * x
	x3 := x2 * x
	x4 := x3 * x
	x5 := x4 * x
	r := 0.13572138 + 4.61539260*x - 42.66032258*x2 + 132.13108234*x3 - 152.94239396*x4 + 59.28637943*x5
	g := 0.09140261 + 2.19418839*x + 4.84296658*x2 - 14.18503333*x3 + 4.27729857*x4 + 2.82956604*x5
	b := 0.10667330 + 12.64194608*x - 60.58204836*x2 + 110.36276771*x3 - 89.90310912*x4 + 27.34824973*x5
	return color.RGBA{unitToByte(r), unitToByte(g), unitToByte(b), 255}
}

var turboTable [256]color.RGBA

func init() {
	for i := range turboTable {
		turboTable[i] = Turbo(float32(i) / 255)
	}
}

// TurboByte is Turbo for an 8-bit normalized value
func TurboByte(v uint8) color.RGBA {
	return turboTable[v]
}

func unitToByte(v float32) uint8 {
	return uint8(math32.Round(math32.Min(1, math32.Max(0, v)) * 255))
}
