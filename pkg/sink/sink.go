// Package sink writes rendered frames out, either as a video or as a directory of images.
package sink

import (
	"errors"
	"image"
)

var ErrSinkOpen = errors.New("Failed to open output")
var ErrSinkWrite = errors.New("Failed to write frame")

// Sink consumes rendered frames in index order
type Sink interface {
	WriteFrame(index int, img *image.RGBA) error
	Close() error
}
