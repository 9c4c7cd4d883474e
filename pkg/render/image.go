package render

import (
	"image"
	"math"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

// Normalize maps frame values to 0..255 with clip((v - vmin) / (vmax - vmin), 0, 1) * 255.
// Non-finite values map to 0.
func Normalize(frame *thermal.Frame, vmin, vmax float64) []uint8 {
	out := make([]uint8, len(frame.Pixels))
	span := vmax - vmin
	if span <= 0 {
		span = 1
	}
	for i, v := range frame.Pixels {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		n := (f - vmin) / span
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		out[i] = uint8(n * 255)
	}
	return out
}

// grayToRGB expands single channel values into a 3 channel image
func grayToRGB(gray []uint8, width, height int) *cimg.Image {
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		line := img.Pixels[y*img.Stride : y*img.Stride+width*3]
		for x := 0; x < width; x++ {
			v := gray[y*width+x]
			line[x*3] = v
			line[x*3+1] = v
			line[x*3+2] = v
		}
	}
	return img
}

// upscale by an integer factor, with nearest neighbour sampling
func upscale(img *cimg.Image, scale int) *cimg.Image {
	if scale <= 1 {
		return img
	}
	params := cimg.ResizeParams{
		CheapSRGBFilter: true,
		Filter:          cimg.ResizeFilterPointSample,
	}
	return cimg.ResizeNew(img, img.Width*scale, img.Height*scale, &params)
}

func toRGBA(img *cimg.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	nchan := img.NChan()
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < img.Width; x++ {
			dst[x*4] = src[x*nchan]
			dst[x*4+1] = src[x*nchan+1]
			dst[x*4+2] = src[x*nchan+2]
			dst[x*4+3] = 255
		}
	}
	return out
}

// ToCImage converts a rendered frame to a 3 channel cimg image, for JPEG compression
func ToCImage(img *image.RGBA) *cimg.Image {
	b := img.Bounds()
	out := cimg.NewImage(b.Dx(), b.Dy(), cimg.PixelFormatRGB)
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		dst := out.Pixels[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return out
}

// RGB returns the tightly packed rgb24 pixels of img, which is what video encoders consume
func RGB(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, b.Dx()*b.Dy()*3)
	i := 0
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out[i] = src[x*4]
			out[i+1] = src[x*4+1]
			out[i+2] = src[x*4+2]
			i += 3
		}
	}
	return out
}

// EncodeJPEG compresses a rendered frame
func EncodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	return cimg.Compress(ToCImage(img), cimg.MakeCompressParams(cimg.Sampling420, quality, 0))
}
