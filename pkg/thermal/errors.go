package thermal

import "errors"

var (
	ErrUnsupportedEncoding = errors.New("payload is neither hex nor base64")
	ErrDecompression       = errors.New("payload zlib decompression failed")
	ErrSizeMismatch        = errors.New("decompressed payload size does not match sensor shape")
	ErrShapeMismatch       = errors.New("frame shape does not match sensor shape")
)

// IsDecodeError returns true if err came from decoding a wire payload
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrUnsupportedEncoding) || errors.Is(err, ErrDecompression) || errors.Is(err, ErrSizeMismatch)
}
