package yolo

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

// GrayImage normalizes a frame by its own min and max, so every training image uses the full range
func GrayImage(frame *thermal.Frame) *image.RGBA {
	st := frame.Stats()
	gray := render.Normalize(frame, st.Min, st.Max)
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i, v := range gray {
		p := img.Pix[i*4 : i*4+4]
		p[0] = v
		p[1] = v
		p[2] = v
		p[3] = 255
	}
	return img
}

func EncodeGray(frame *thermal.Frame, format ImageFormat) ([]byte, error) {
	switch format {
	case ImagesPNG:
		return sink.EncodeImage(GrayImage(frame), sink.FormatPNG)
	case ImagesJPEG:
		return sink.EncodeImage(GrayImage(frame), sink.FormatJPEG)
	}
	return nil, fmt.Errorf("Format '%v' is not an 8-bit image format", format)
}

const npyAlign = 64

// WriteNPY writes the frame as a little endian float32 numpy array of shape (height, width)
func WriteNPY(w io.Writer, frame *thermal.Frame) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", frame.Height, frame.Width)
	// magic (6) + version (2) + header length (2) + header + newline
	pad := npyAlign - (10+len(header)+1)%npyAlign
	if pad == npyAlign {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	prefix := []byte("\x93NUMPY\x01\x00")
	prefix = binary.LittleEndian.AppendUint16(prefix, uint16(len(header)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, frame.Pixels)
}
