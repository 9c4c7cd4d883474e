package pipeline

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

// Summary counts what happened during a session
type Summary struct {
	SessionID       string         `json:"sessionID"`
	Frames          int            `json:"frames"`          // Frames loaded or fetched
	Annotated       int            `json:"annotated"`       // Annotation records
	Matched         int            `json:"matched"`         // Alignment queries that found a counterpart
	Unmatched       int            `json:"unmatched"`       // Alignment queries that did not
	Failed          int            `json:"failed"`          // Frames that could not be decoded
	Placeholders    int            `json:"placeholders"`    // All-zero frames substituted for missing frames
	NonFinitePixels int            `json:"nonFinitePixels"` // NaN or Inf pixels seen in decoded frames
	Rendered        int            `json:"rendered"`        // Frames written to a sink
	RenderMS        float64        `json:"renderMS"`        // Mean time to draw one frame
	MinC            float64        `json:"minC"`
	MaxC            float64        `json:"maxC"`
	DurationS       float64        `json:"durationS"`
	Categories      map[string]int `json:"categories"` // Object count per "category/subcategory"
}

// Finish fills in the temperature range, duration and category counts
func (s *Session) Finish(items []Item) *Summary {
	sum := &s.Summary
	sum.Categories = annotation.CountInstances(s.Records)
	sum.MinC, sum.MaxC = math.Inf(1), math.Inf(-1)
	first, last := math.Inf(1), math.Inf(-1)
	for _, f := range Frames(items) {
		st := f.In(thermal.UnitCelsius).Stats()
		if st.ValidPixels != 0 {
			sum.MinC = min(sum.MinC, st.Min)
			sum.MaxC = max(sum.MaxC, st.Max)
		}
		if f.HasTimestamp {
			first = min(first, f.Timestamp)
			last = max(last, f.Timestamp)
		}
	}
	if math.IsInf(sum.MinC, 0) {
		sum.MinC, sum.MaxC = 0, 0
	}
	sum.DurationS = 0
	if last > first {
		sum.DurationS = last - first
	}
	return sum
}

func (s *Summary) Log(log logs.Log) {
	log.Infof("Frames: %v (%v failed to decode), annotations: %v", s.Frames, s.Failed, s.Annotated)
	log.Infof("Matched: %v, unmatched: %v, placeholders: %v, rendered: %v (%.2f ms/frame)", s.Matched, s.Unmatched, s.Placeholders, s.Rendered, s.RenderMS)
	if s.NonFinitePixels != 0 {
		log.Warnf("%v non-finite pixels were rendered black and left out of statistics", s.NonFinitePixels)
	}
}

// WriteReport writes the human readable summary, listing categories in registry id order
func (s *Summary) WriteReport(w io.Writer, registry *annotation.Registry) error {
	rule := strings.Repeat("=", 60)
	b := &strings.Builder{}
	fmt.Fprintf(b, "%v\nTHERMAL DATA ANNOTATION SUMMARY\n%v\n\n", rule, rule)
	fmt.Fprintf(b, "Session: %v\n", s.SessionID)
	fmt.Fprintf(b, "Total Frames: %v\n", s.Frames)
	fmt.Fprintf(b, "Annotated Frames: %v\n", s.Annotated)
	fmt.Fprintf(b, "Temperature Range: %.1fC to %.1fC\n", s.MinC, s.MaxC)
	fmt.Fprintf(b, "Duration: %.1f seconds\n\n", s.DurationS)
	fmt.Fprintf(b, "Matched: %v\nUnmatched: %v\nFailed: %v\nPlaceholders: %v\nNon-finite pixels: %v\n\n",
		s.Matched, s.Unmatched, s.Failed, s.Placeholders, s.NonFinitePixels)
	fmt.Fprintf(b, "Categories Found:\n%v\n", strings.Repeat("-", 60))
	for id, name := range registry.Names() {
		fmt.Fprintf(b, "  %v: %-40v (%v instances)\n", id, name, s.Categories[name])
	}
	fmt.Fprintf(b, "\n%v\n", rule)
	_, err := io.WriteString(w, b.String())
	return err
}
