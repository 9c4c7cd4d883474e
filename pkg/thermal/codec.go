package thermal

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
)

// PayloadFormat is the numeric layout of a decompressed wire payload
type PayloadFormat int

const (
	FormatDeciKelvin PayloadFormat = iota // int16, Kelvin * 10
	FormatCelsius                         // float32, Celsius
)

// Encoding is the text encoding of the compressed bytes
type Encoding int

const (
	EncodingHex Encoding = iota
	EncodingBase64
)

// Payload is one compressed frame, as stored in the time series database
type Payload struct {
	TimeMS int64  `json:"timeMS"`
	Data   string `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Shape returns the payload's declared shape, falling back to DefaultShape for missing dimensions
func (p *Payload) Shape() Shape {
	s := DefaultShape
	if p.Width > 0 {
		s.Width = p.Width
	}
	if p.Height > 0 {
		s.Height = p.Height
	}
	return s
}

// Decode decodes the payload and stamps the frame with the payload time
func (p *Payload) Decode() (*Frame, error) {
	f, err := DecodeBinary(p.Data, p.Shape())
	if err != nil {
		return nil, err
	}
	f.Timestamp = float64(p.TimeMS) / 1000
	f.HasTimestamp = true
	return f, nil
}

// DecodeBinary decodes a hex or base64 encoded, zlib compressed frame.
// The payload is either int16 deci-Kelvin (the frame is returned in Kelvin),
// or float32 Celsius (the frame is returned in Celsius).
// The sensor is mounted mirrored, so every row is flipped horizontally.
func DecodeBinary(payload string, shape Shape) (*Frame, error) {
	compressed, err := decodeText(payload)
	if err != nil {
		return nil, err
	}
	raw, err := inflate(compressed)
	if err != nil {
		return nil, err
	}
	frame, err := unpack(raw, shape)
	if err != nil {
		return nil, err
	}
	return frame.Flipped(), nil
}

// EncodeBinary is the inverse of DecodeBinary
func EncodeBinary(f *Frame, format PayloadFormat, enc Encoding) (string, error) {
	var raw []byte
	flipped := f.Flipped()
	switch format {
	case FormatDeciKelvin:
		k := flipped.In(UnitKelvin)
		raw = make([]byte, len(k.Pixels)*2)
		for i, v := range k.Pixels {
			dk := KelvinToDeciKelvin(float64(v))
			if dk < math.MinInt16 || dk > math.MaxInt16 {
				return "", fmt.Errorf("Temperature %v K does not fit in int16 deci-Kelvin", v)
			}
			binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(dk)))
		}
	case FormatCelsius:
		c := flipped.In(UnitCelsius)
		raw = make([]byte, len(c.Pixels)*4)
		for i, v := range c.Pixels {
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
		}
	default:
		return "", fmt.Errorf("Unknown payload format %v", format)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	if enc == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// A payload made only of hex digits is treated as hex. Anything else, or hex that
// does not decode (eg odd length), is tried as base64.
func decodeText(payload string) ([]byte, error) {
	if isHex(payload) {
		if b, err := hex.DecodeString(payload); err == nil {
			return b, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(payload); err == nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w (%v characters)", ErrUnsupportedEncoding, len(payload))
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompression, err)
	}
	return raw, nil
}

func unpack(raw []byte, shape Shape) (*Frame, error) {
	n := shape.Pixels()
	switch len(raw) {
	case n * 2:
		f := NewFrame(shape, UnitKelvin)
		for i := range f.Pixels {
			dk := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			f.Pixels[i] = float32(dk) / 10
		}
		return f, nil
	case n * 4:
		f := NewFrame(shape, UnitCelsius)
		for i := range f.Pixels {
			f.Pixels[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: got %v bytes, expected %v (int16) or %v (float32) for %v", ErrSizeMismatch, len(raw), n*2, n*4, shape)
}
