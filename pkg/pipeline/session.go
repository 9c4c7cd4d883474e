// Package pipeline composes decoding, alignment, rendering and export into the workflows
// used by the command line tools and the preview server.
package pipeline

import (
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/framecache"
	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/google/uuid"
)

// Options that stay fixed for the lifetime of a session
type Options struct {
	Shape thermal.Shape
	Align align.BatchOptions

	// Substitute an all-zero frame when an annotation has no frame.
	// Training exports want one frame per annotation. Rendered output should not show fake frames.
	ZeroFill bool

	Scale        int
	Palette      *render.Palette
	RelativeTime bool    // Show frame times relative to the first frame, instead of absolute
	OverlapIoU   float64 // Warn about same-category boxes in one record that overlap at least this much. 0 disables.
}

func DefaultOptions() Options {
	return Options{
		Shape:      thermal.DefaultShape,
		Align:      align.DefaultBatchOptions(),
		Scale:      render.DefaultScale,
		Palette:    render.DefaultPalette(),
		OverlapIoU: 0.9,
	}
}

// Session owns the state of one export: the category registry, the frame cache, the loaded
// annotations, and the running summary. Sessions are independent of each other.
type Session struct {
	ID       string
	Log      logs.Log
	Options  Options
	Registry *annotation.Registry
	Cache    *framecache.FrameCache
	Records  []annotation.Record
	Summary  Summary
	Drift    *DriftMonitor
}

func NewSession(log logs.Log, opts Options) *Session {
	if opts.Palette == nil {
		opts.Palette = render.DefaultPalette()
	}
	if opts.Scale < 1 {
		opts.Scale = render.DefaultScale
	}
	if opts.Shape.Pixels() == 0 {
		opts.Shape = thermal.DefaultShape
	}
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Log:      log,
		Options:  opts,
		Registry: annotation.NewRegistry(),
		Cache:    framecache.NewFrameCache(),
		Summary:  Summary{SessionID: id},
		Drift:    NewDriftMonitor(log, opts.Align.ToleranceMS/2),
	}
}

// LoadAnnotations reads an NDJSON annotation file into the session
func (s *Session) LoadAnnotations(filename string) error {
	records, stats, err := annotation.Load(s.Log, filename, s.Registry)
	if err != nil {
		return err
	}
	s.Log.Infof("Loaded %v annotation records from %v (%v lines skipped, %v objects dropped)", len(records), filename, stats.SkippedLines, stats.DroppedObjects)
	s.SetAnnotations(records)
	return nil
}

// SetAnnotations replaces the session's annotation records. Their categories are registered in order.
func (s *Session) SetAnnotations(records []annotation.Record) {
	for _, r := range records {
		for _, obj := range r.Objects {
			s.Registry.Register(obj.Category, obj.Subcategory)
		}
	}
	s.Records = records
	s.Summary.Annotated = len(records)
	if s.Options.OverlapIoU > 0 {
		for _, o := range annotation.FindOverlaps(records, s.Options.OverlapIoU) {
			s.Log.Warnf("Record %v: objects %v and %v (%v) overlap with IoU %.2f", o.DataID, o.ObjectA, o.ObjectB, o.Key, o.IOU)
		}
	}
}

// LoadTextFrames reads a legacy text frame file, and caches every frame that has a timestamp
func (s *Session) LoadTextFrames(filename string) ([]*thermal.Frame, error) {
	frames, err := thermal.LoadTextFile(filename, s.Options.Shape)
	if err != nil {
		return nil, err
	}
	s.Log.Infof("Loaded %v frames from %v", len(frames), filename)
	s.AddFrames(frames)
	return frames, nil
}

// AddFrames caches frames that have a timestamp, and checks every frame for invalid pixels
func (s *Session) AddFrames(frames []*thermal.Frame) {
	s.Summary.Frames += len(frames)
	for i, f := range frames {
		s.checkFrame(i, f)
		if f.HasTimestamp {
			s.Cache.AddFrame(f.TimestampMS(), f)
		}
	}
}

func (s *Session) checkFrame(index int, f *thermal.Frame) {
	if n := f.NonFinite(); n != 0 {
		s.Log.Warnf("Frame %v has %v non-finite pixels", index, n)
		s.Summary.NonFinitePixels += n
	}
}
