package thermal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var timestampRegex = regexp.MustCompile(`t:\s*([\d.]+)`)

// LoadTextFile reads every frame from a legacy text capture
func LoadTextFile(filename string, shape Shape) ([]*Frame, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := DecodeText(f, shape)
	if err != nil {
		return nil, fmt.Errorf("Error reading %v: %w", filename, err)
	}
	return frames, nil
}

// DecodeText parses the legacy line-oriented capture format.
// The first line is a header. Each subsequent line holds an optional "t:<seconds>"
// timestamp, and at least Width*Height 5-digit deci-Kelvin values.
// Lines with too few values are skipped, so the number of frames returned may be
// less than the number of lines. Frames are returned in Kelvin, and are not flipped.
func DecodeText(r io.Reader, shape Shape) ([]*Frame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	frames := []*Frame{}
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		if f := decodeTextLine(scanner.Text(), shape); f != nil {
			frames = append(frames, f)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

func decodeTextLine(line string, shape Shape) *Frame {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	hasTimestamp := false
	timestamp := 0.0
	if m := timestampRegex.FindStringSubmatchIndex(line); m != nil {
		if ts, err := strconv.ParseFloat(line[m[2]:m[3]], 64); err == nil {
			timestamp = ts
			hasTimestamp = true
		}
		line = timestampRegex.ReplaceAllString(line, " ")
	}

	n := shape.Pixels()
	values := make([]float32, 0, n)
	for _, tok := range strings.FieldsFunc(line, isNotDigit) {
		if len(tok) != 5 {
			continue
		}
		dk, _ := strconv.Atoi(tok)
		values = append(values, float32(dk)/10)
		if len(values) == n {
			break
		}
	}
	if len(values) < n {
		return nil
	}

	f := NewFrame(shape, UnitKelvin)
	copy(f.Pixels, values)
	f.Timestamp = timestamp
	f.HasTimestamp = hasTimestamp
	return f
}

func isNotDigit(r rune) bool {
	return r < '0' || r > '9'
}
