package pipeline

import (
	"fmt"
	"time"

	"github.com/cyclopcam/thermview/pkg/perfstats"
	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/cyclopcam/thermview/pkg/yolo"
)

// Bounds returns the Celsius display range of the real frames in items.
// This is the first pass of every export, so that brightness is constant across the output.
func Bounds(items []Item) (vmin, vmax float64) {
	frames := Frames(items)
	celsius := make([]*thermal.Frame, len(frames))
	for i, f := range frames {
		celsius[i] = f.In(thermal.UnitCelsius)
	}
	return thermal.DisplayBounds(celsius)
}

func (s *Session) timeOrigin(items []Item) float64 {
	if !s.Options.RelativeTime {
		return 0
	}
	for _, it := range items {
		if it.Frame != nil && it.Frame.HasTimestamp {
			return it.Frame.Timestamp
		}
	}
	return 0
}

// ExportRendered draws every item that has a frame, with its annotation, into out.
// The first sink error aborts the export. The caller closes out.
func (s *Session) ExportRendered(items []Item, out sink.Sink) error {
	vmin, vmax := Bounds(items)
	s.Log.Infof("Temperature range: %.1fC to %.1fC", vmin, vmax)
	params := render.Params{
		VMin:       vmin,
		VMax:       vmax,
		Scale:      s.Options.Scale,
		TimeOrigin: s.timeOrigin(items),
		Palette:    s.Options.Palette,
	}
	renderTime := perfstats.TimeAccumulator{}
	defer s.setRenderTime(&renderTime)
	for _, it := range items {
		if it.Frame == nil {
			continue
		}
		params.FrameIndex = it.Index
		start := time.Now()
		img := render.Render(it.Frame.In(thermal.UnitCelsius), it.Record, params)
		renderTime.AddSample(time.Since(start))
		if err := out.WriteFrame(it.Index, img); err != nil {
			return fmt.Errorf("Export aborted at frame %v: %w", it.Index, err)
		}
		s.Summary.Rendered++
	}
	return nil
}

// ExportRaw draws every item that has a frame with the Turbo colormap, without annotations
func (s *Session) ExportRaw(items []Item, out sink.Sink) error {
	vmin, vmax := Bounds(items)
	s.Log.Infof("Temperature range: %.1fC to %.1fC", vmin, vmax)
	params := render.RawParams{
		VMin:       vmin,
		VMax:       vmax,
		Scale:      s.Options.Scale,
		TimeOrigin: s.timeOrigin(items),
	}
	renderTime := perfstats.TimeAccumulator{}
	defer s.setRenderTime(&renderTime)
	for _, it := range items {
		if it.Frame == nil {
			continue
		}
		params.FrameIndex = it.Index
		start := time.Now()
		img := render.RenderRaw(it.Frame, params)
		renderTime.AddSample(time.Since(start))
		if err := out.WriteFrame(it.Index, img); err != nil {
			return fmt.Errorf("Export aborted at frame %v: %w", it.Index, err)
		}
		s.Summary.Rendered++
	}
	return nil
}

func (s *Session) setRenderTime(acc *perfstats.TimeAccumulator) {
	s.Summary.RenderMS = float64(acc.Average().Microseconds()) / 1000
}

// ExportYOLO writes a label file for every item in labels that has both a record and a frame,
// and a training image (in Celsius) for every item in images that has a frame.
// Classes come from the session registry. datasetPath is written into dataset.yaml.
func (s *Session) ExportYOLO(exp *yolo.Exporter, labels, images []Item, datasetPath string) error {
	for _, it := range labels {
		if it.Record == nil || it.Frame == nil {
			continue
		}
		if err := exp.WriteLabels(it.Index, it.Record); err != nil {
			return err
		}
	}
	for _, it := range images {
		if it.Frame == nil {
			continue
		}
		if err := exp.WriteImage(it.Index, it.Frame.In(thermal.UnitCelsius)); err != nil {
			return err
		}
	}
	return exp.Finish(datasetPath)
}
