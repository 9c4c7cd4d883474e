package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

// FetchForRecords retrieves the frames for every annotation record with a single range query,
// and assigns one frame to each record. The result has one item per record, in record order,
// with Item.Index equal to the record index.
// A record without a frame gets an all-zero placeholder if Options.ZeroFill is set, or a nil Frame otherwise.
func (s *Session) FetchForRecords(ctx context.Context, src PayloadSource, sensor string) ([]Item, error) {
	if len(s.Records) == 0 {
		return nil, nil
	}
	tol := s.Options.Align.ToleranceMS
	startMS, endMS, _ := annotation.TimeRange(s.Records, time.Duration(tol)*time.Millisecond)
	payloads, err := src.QueryRange(ctx, sensor, startMS, endMS)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch frames of %v: %w", sensor, err)
	}
	frameTimes := s.DecodePayloads(payloads)

	opts := s.Options.Align
	opts.Inclusive = true
	res := align.MatchBatch(annotation.Times(s.Records), frameTimes, opts)

	items := make([]Item, len(s.Records))
	for i := range s.Records {
		rec := &s.Records[i]
		items[i] = Item{Index: i, Record: rec}
		if c := res.Candidate(i); c != -1 {
			items[i].Frame = s.Cache.GetFrame(frameTimes[c])
			items[i].DeltaMS = res.DeltaMS[i]
			s.Summary.Matched++
			s.Drift.Add(res.DeltaMS[i])
			continue
		}
		s.Summary.Unmatched++
		if s.Options.ZeroFill {
			s.Log.Warnf("No frame for annotation %v at %v, using an all-zero placeholder", rec.DataID, rec.Time().Format(time.RFC3339Nano))
			items[i].Frame = placeholder(s.Options.Shape, rec.DataTime)
			items[i].Placeholder = true
			s.Summary.Placeholders++
		} else {
			s.Log.Warnf("No frame for annotation %v at %v", rec.DataID, rec.Time().Format(time.RFC3339Nano))
		}
	}
	s.Log.Infof("Matched %v of %v annotations to %v frames", res.Matched, len(s.Records), len(frameTimes))
	return items, nil
}

// FetchRange retrieves and caches every frame of sensor in [startMS, endMS], in time order.
// Frames that fail to decode are logged, counted and left out.
func (s *Session) FetchRange(ctx context.Context, src PayloadSource, sensor string, startMS, endMS int64) ([]*thermal.Frame, error) {
	payloads, err := src.QueryRange(ctx, sensor, startMS, endMS)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch frames of %v: %w", sensor, err)
	}
	times := s.DecodePayloads(payloads)
	frames := make([]*thermal.Frame, len(times))
	for i, t := range times {
		frames[i] = s.Cache.GetFrame(t)
	}
	s.Log.Infof("Fetched %v frames of %v", len(frames), sensor)
	return frames, nil
}

// DecodePayloads decodes and caches payloads, and returns the times of the frames that decoded successfully.
// Frames that fail to decode, or have the wrong shape, are logged and counted.
func (s *Session) DecodePayloads(payloads []thermal.Payload) []int64 {
	times := make([]int64, 0, len(payloads))
	for i := range payloads {
		p := &payloads[i]
		s.Summary.Frames++
		f, err := p.Decode()
		if err == nil {
			err = f.CheckShape(s.Options.Shape)
		}
		if err != nil {
			s.Log.Warnf("Skipping frame at %v: %v", p.TimeMS, err)
			s.Summary.Failed++
			continue
		}
		s.checkFrame(i, f)
		s.Cache.AddFrame(p.TimeMS, f)
		times = append(times, p.TimeMS)
	}
	return times
}

// Placeholders are 0 °C everywhere, so exports (which are all in Celsius) see zeros
func placeholder(shape thermal.Shape, timeMS int64) *thermal.Frame {
	f := thermal.ZeroFrame(shape, thermal.UnitCelsius)
	f.Timestamp = float64(timeMS) / 1000
	f.HasTimestamp = true
	return f
}

// Prepare fetches the frames around the annotations (with a buffer on both sides), and
// measures how well they line up. Wrap src in an ArchivingSource to keep the frames.
func (s *Session) Prepare(ctx context.Context, src PayloadSource, sensor string, buffer time.Duration) (align.MatchStats, error) {
	startMS, endMS, ok := annotation.TimeRange(s.Records, buffer)
	if !ok {
		return align.MatchStats{}, fmt.Errorf("No annotations loaded")
	}
	payloads, err := src.QueryRange(ctx, sensor, startMS, endMS)
	if err != nil {
		return align.MatchStats{}, fmt.Errorf("Failed to fetch frames of %v: %w", sensor, err)
	}
	frameTimes := s.DecodePayloads(payloads)
	stats := align.Verify(annotation.Times(s.Records), frameTimes, s.Options.Align)
	s.Summary.Matched += stats.Matched
	s.Summary.Unmatched += stats.Total - stats.Matched

	s.Log.Infof("Frames: %v, annotations: %v, matched: %v/%v (%.1f%%), mean delta %.1f ms",
		len(frameTimes), stats.Total, stats.Matched, stats.Total, stats.Rate*100, stats.MeanDeltaMS)
	if stats.Matched == stats.Total {
		s.Log.Infof("All annotations can be matched")
	} else if stats.Acceptable() {
		s.Log.Warnf("%v annotations are unmatched", stats.Total-stats.Matched)
	} else {
		s.Log.Errorf("Poor match. Only %.1f%% of annotations matched", stats.Rate*100)
	}
	return stats, nil
}
