package thermal

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func textLine(t float64, n int, first int) string {
	var sb strings.Builder
	if t >= 0 {
		fmt.Fprintf(&sb, "t: %v ", t)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%05d,", first+i%100)
	}
	return sb.String()
}

func TestDecodeTextScenario(t *testing.T) {
	input := "header line 12345 67890\n" + textLine(1.234, 2400, 29000) + "\n"
	frames, err := DecodeText(strings.NewReader(input), DefaultShape)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	f := frames[0]
	require.True(t, f.HasTimestamp)
	require.Equal(t, 1.234, f.Timestamp)
	require.Equal(t, UnitKelvin, f.Unit)
	require.Len(t, f.Pixels, 2400)
	require.Equal(t, 0, f.NonFinite())
	for i, v := range f.Pixels {
		require.InDelta(t, float32(29000+i%100)/10, v, 1e-3)
	}
	// No flip on the text path
	require.InDelta(t, 2900.0, f.At(0, 0), 1e-3)
	require.InDelta(t, 2900.1, f.At(1, 0), 1e-3)
}

func TestDecodeTextSkipsShortLines(t *testing.T) {
	shape := Shape{Width: 4, Height: 2}
	lines := []string{
		"HEADER",
		textLine(0.5, 8, 30000),
		textLine(0.6, 7, 30000), // too short
		"",
		textLine(-1, 10, 31000), // no timestamp, extra values ignored
		"t: 0.8 123 1234 123456 " + textLine(-1, 8, 32000), // tokens that are not 5 digits are ignored
	}
	frames, err := DecodeText(strings.NewReader(strings.Join(lines, "\n")), shape)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	require.Equal(t, 0.5, frames[0].Timestamp)
	require.False(t, frames[1].HasTimestamp)
	require.InDelta(t, 3100.7, frames[1].Pixels[7], 1e-3)
	require.Equal(t, 0.8, frames[2].Timestamp)
	require.InDelta(t, 3200.0, frames[2].Pixels[0], 1e-3)
}

func TestDecodeTextHeaderOnly(t *testing.T) {
	frames, err := DecodeText(strings.NewReader("only a header"), DefaultShape)
	require.NoError(t, err)
	require.Len(t, frames, 0)
}
