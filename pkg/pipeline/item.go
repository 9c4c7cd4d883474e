package pipeline

import (
	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

// Item is one output frame and the annotation aligned to it
type Item struct {
	Index       int                // Frame index in the output
	Frame       *thermal.Frame     // nil if no frame was found
	Record      *annotation.Record // nil if the frame has no annotation
	Placeholder bool               // Frame is an all-zero substitute
	DeltaMS     int64              // Time between frame and record, if both are present
}

// Slice returns up to n items starting at start. n <= 0 means all remaining items.
func Slice(items []Item, start, n int) []Item {
	start = max(0, min(start, len(items)))
	end := len(items)
	if n > 0 {
		end = min(end, start+n)
	}
	return items[start:end]
}

// Frames returns the real (not placeholder) frames of items
func Frames(items []Item) []*thermal.Frame {
	frames := []*thermal.Frame{}
	for _, it := range items {
		if it.Frame != nil && !it.Placeholder {
			frames = append(frames, it.Frame)
		}
	}
	return frames
}

// AlignFrames pairs every frame with its closest annotation record, if one lies within tolerance.
// Every frame produces an item, so this is the view used for rendering a continuous video.
func (s *Session) AlignFrames(frames []*thermal.Frame) []Item {
	candidates := make([]align.Candidate[int], len(s.Records))
	for i := range s.Records {
		candidates[i] = align.Candidate[int]{TimeMS: s.Records[i].DataTime, Value: i}
	}
	items := make([]Item, len(frames))
	for i, f := range frames {
		items[i] = Item{Index: i, Frame: f}
		if !f.HasTimestamp {
			continue
		}
		res := align.Match(f.TimestampMS(), candidates, s.Options.Align.ToleranceMS)
		if res.Matched {
			items[i].Record = &s.Records[res.Candidate.Value]
			items[i].DeltaMS = res.DeltaMS
			s.Drift.Add(res.DeltaMS)
		}
	}
	return items
}

// AlignRecords pairs every annotation record with its closest frame.
// Item.Index is the index of the frame in frames. Records without a frame are logged and left out.
func (s *Session) AlignRecords(frames []*thermal.Frame) []Item {
	candidates := []align.Candidate[int]{}
	for i, f := range frames {
		if f.HasTimestamp {
			candidates = append(candidates, align.Candidate[int]{TimeMS: f.TimestampMS(), Value: i})
		}
	}
	items := []Item{}
	for i := range s.Records {
		rec := &s.Records[i]
		res := align.Match(rec.DataTime, candidates, s.Options.Align.ToleranceMS)
		if !res.Matched {
			s.Log.Warnf("No matching frame found for annotation %v at %v", rec.DataID, rec.DataTime)
			s.Summary.Unmatched++
			continue
		}
		s.Summary.Matched++
		s.Drift.Add(res.DeltaMS)
		items = append(items, Item{
			Index:   res.Candidate.Value,
			Frame:   frames[res.Candidate.Value],
			Record:  rec,
			DeltaMS: res.DeltaMS,
		})
	}
	return items
}
