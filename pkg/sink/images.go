package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/storage"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpg"
)

const DefaultJPEGQuality = 90

func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("Unknown image format '%v'", s)
}

// EncodeImage compresses a rendered frame
func EncodeImage(img *image.RGBA, format ImageFormat) ([]byte, error) {
	switch format {
	case FormatPNG:
		buf := bytes.Buffer{}
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJPEG:
		return render.EncodeJPEG(img, DefaultJPEGQuality)
	}
	return nil, fmt.Errorf("Unknown image format '%v'", format)
}

// ImageSink writes each frame as dir/frame_NNNN.<ext> into a blob store
type ImageSink struct {
	log     logs.Log
	store   storage.Storage
	dir     string
	format  ImageFormat
	nFrames int
}

func NewImageSink(log logs.Log, store storage.Storage, dir string, format ImageFormat) (*ImageSink, error) {
	if format != FormatPNG && format != FormatJPEG {
		return nil, fmt.Errorf("%w: Unknown image format '%v'", ErrSinkOpen, format)
	}
	return &ImageSink{
		log:    log,
		store:  store,
		dir:    dir,
		format: format,
	}, nil
}

// Filename returns the blob name of frame index
func (s *ImageSink) Filename(index int) string {
	return path.Join(s.dir, fmt.Sprintf("frame_%04d.%v", index, s.format))
}

func (s *ImageSink) WriteFrame(index int, img *image.RGBA) error {
	b, err := EncodeImage(img, s.format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	if err := storage.WriteFile(s.store, s.Filename(index), bytes.NewReader(b)); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	s.nFrames++
	return nil
}

func (s *ImageSink) Close() error {
	s.log.Infof("Wrote %v images to %v", s.nFrames, s.dir)
	return nil
}
