package pipeline

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/framestore"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/storage"
	"github.com/cyclopcam/thermview/pkg/tdengine"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/cyclopcam/thermview/pkg/yolo"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	payloads []thermal.Payload
	startMS  int64
	endMS    int64
	calls    int
}

func (f *fakeSource) QueryRange(ctx context.Context, sensor string, startMS, endMS int64) ([]thermal.Payload, error) {
	f.calls++
	f.startMS = startMS
	f.endMS = endMS
	out := []thermal.Payload{}
	for _, p := range f.payloads {
		if p.TimeMS >= startMS && p.TimeMS <= endMS {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSink struct {
	indices []int
	failAt  int // Fail when this many frames have been written
}

func (f *fakeSink) WriteFrame(index int, img *image.RGBA) error {
	if f.failAt > 0 && len(f.indices) == f.failAt {
		return sink.ErrSinkWrite
	}
	f.indices = append(f.indices, index)
	return nil
}

func (f *fakeSink) Close() error { return nil }

// Celsius frame with a horizontal temperature gradient
func gradientFrame(base float32) *thermal.Frame {
	f := thermal.NewFrame(thermal.DefaultShape, thermal.UnitCelsius)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.Pixels[y*f.Width+x] = base + float32(x)/10
		}
	}
	return f
}

func payloadAt(t *testing.T, timeMS int64, base float32) thermal.Payload {
	data, err := thermal.EncodeBinary(gradientFrame(base), thermal.FormatDeciKelvin, thermal.EncodingBase64)
	require.NoError(t, err)
	return thermal.Payload{TimeMS: timeMS, Data: data, Width: 60, Height: 40}
}

func testRecords() []annotation.Record {
	obj := func(cat, sub string, id int, cx float64) annotation.Object {
		return annotation.Object{BBox: annotation.BBox{cx, 0.5, 0.1, 0.1}, Category: cat, Subcategory: sub, ObjectID: id}
	}
	return []annotation.Record{
		{DataTime: 1000, DataID: "r", Objects: []annotation.Object{obj("person", "adult", 1, 0.3)}},
		{DataTime: 2000, DataID: "r", Objects: []annotation.Object{obj("person", "adult", 1, 0.3), obj("furniture", "sofa", 2, 0.7)}},
		{DataTime: 3000, DataID: "r", Objects: []annotation.Object{obj("object", "cup", 3, 0.5)}},
	}
}

func newTestSession(t *testing.T, zeroFill bool) *Session {
	opts := DefaultOptions()
	opts.ZeroFill = zeroFill
	s := NewSession(logs.NewTestingLog(t), opts)
	s.SetAnnotations(testRecords())
	return s
}

func testPayloads(t *testing.T) []thermal.Payload {
	return []thermal.Payload{
		payloadAt(t, 1050, 20),
		payloadAt(t, 2100, 21), // Exactly at tolerance, which the remote fetch accepts
		{TimeMS: 2500, Data: "not a frame!"},
		payloadAt(t, 3500, 22), // Too far from any record
	}
}

func TestFetchForRecordsZeroFill(t *testing.T) {
	s := newTestSession(t, true)
	src := &fakeSource{payloads: testPayloads(t)}
	items, err := s.FetchForRecords(context.Background(), src, "aa:bb:cc:00:11:22")
	require.NoError(t, err)

	// One range query, covering the records plus tolerance
	require.Equal(t, 1, src.calls)
	require.Equal(t, int64(900), src.startMS)
	require.Equal(t, int64(3100), src.endMS)

	require.Len(t, items, 3)
	require.False(t, items[0].Placeholder)
	require.Equal(t, int64(50), items[0].DeltaMS)
	require.Equal(t, int64(100), items[1].DeltaMS)
	require.True(t, items[2].Placeholder)
	require.NotNil(t, items[2].Frame)
	require.Equal(t, thermal.DefaultShape, items[2].Frame.Shape())
	require.Equal(t, &s.Records[2], items[2].Record)
	for _, v := range items[2].Frame.In(thermal.UnitCelsius).Pixels {
		require.Equal(t, float32(0), v)
	}

	require.Equal(t, 3, s.Summary.Frames)
	require.Equal(t, 1, s.Summary.Failed)
	require.Equal(t, 2, s.Summary.Matched)
	require.Equal(t, 1, s.Summary.Unmatched)
	require.Equal(t, 1, s.Summary.Placeholders)
	require.Equal(t, 2, s.Cache.Len())
	require.Len(t, Frames(items), 2)
}

func TestFetchAndRender(t *testing.T) {
	s := newTestSession(t, false)
	src := &fakeSource{payloads: testPayloads(t)}
	items, err := s.FetchForRecords(context.Background(), src, "aa:bb:cc:00:11:22")
	require.NoError(t, err)
	require.Nil(t, items[2].Frame)
	require.Equal(t, 0, s.Summary.Placeholders)

	out := &fakeSink{}
	require.NoError(t, s.ExportRendered(items, out))
	require.Equal(t, []int{0, 1}, out.indices)
	require.Equal(t, 2, s.Summary.Rendered)

	raw := &fakeSink{}
	require.NoError(t, s.ExportRaw(items, raw))
	require.Equal(t, []int{0, 1}, raw.indices)
}

func TestExportAbortsOnSinkError(t *testing.T) {
	s := newTestSession(t, false)
	src := &fakeSource{payloads: testPayloads(t)}
	items, err := s.FetchForRecords(context.Background(), src, "aa:bb:cc:00:11:22")
	require.NoError(t, err)
	out := &fakeSink{failAt: 1}
	err = s.ExportRendered(items, out)
	require.ErrorIs(t, err, sink.ErrSinkWrite)
	require.Equal(t, 1, s.Summary.Rendered)
}

func TestBounds(t *testing.T) {
	items := []Item{
		{Frame: gradientFrame(20)},
		{Frame: thermal.ZeroFrame(thermal.DefaultShape, thermal.UnitCelsius), Placeholder: true},
		{},
	}
	vmin, vmax := Bounds(items)
	// Gradient spans 20.0 to 25.9, and the placeholder is ignored
	require.Greater(t, vmin, 19.5)
	require.Less(t, vmin, 20.1)
	require.Greater(t, vmax, 25.8)
	require.Less(t, vmax, 26.5)
}

func framesAt(times ...float64) []*thermal.Frame {
	frames := []*thermal.Frame{}
	for _, ts := range times {
		f := gradientFrame(20).In(thermal.UnitKelvin)
		f.Timestamp = ts
		f.HasTimestamp = true
		frames = append(frames, f)
	}
	return frames
}

func TestAlignLocalFrames(t *testing.T) {
	s := newTestSession(t, false)
	frames := framesAt(0.5, 0.95, 1.05, 2.1, 2.95)
	s.AddFrames(frames)
	require.Equal(t, 5, s.Summary.Frames)
	require.Equal(t, 5, s.Cache.Len())

	items := s.AlignFrames(frames)
	require.Len(t, items, 5)
	require.Nil(t, items[0].Record)
	require.Equal(t, int64(1000), items[1].Record.DataTime)
	require.Equal(t, int64(1000), items[2].Record.DataTime)
	require.Nil(t, items[3].Record) // 100 ms is not strictly inside the tolerance
	require.Equal(t, int64(3000), items[4].Record.DataTime)

	// Records: 1000 ties between 950 and 1050, and the first frame wins
	byRecord := s.AlignRecords(frames)
	require.Len(t, byRecord, 2)
	require.Equal(t, 1, byRecord[0].Index)
	require.Equal(t, 4, byRecord[1].Index)
	require.Equal(t, 2, s.Summary.Matched)
	require.Equal(t, 1, s.Summary.Unmatched)
}

func TestSlice(t *testing.T) {
	items := make([]Item, 10)
	require.Len(t, Slice(items, 0, 0), 10)
	require.Len(t, Slice(items, 8, 5), 2)
	require.Len(t, Slice(items, 20, 5), 0)
	require.Len(t, Slice(items, 2, 3), 3)
}

func TestExportYOLO(t *testing.T) {
	log := logs.NewTestingLog(t)
	s := newTestSession(t, false)
	frames := framesAt(0.95, 2.02, 2.5)
	labels := s.AlignRecords(frames)
	images := s.AlignFrames(frames)

	store, err := storage.NewStorageFS(log, t.TempDir())
	require.NoError(t, err)
	exp := yolo.NewExporter(log, store, s.Registry, yolo.ImagesNPY)
	require.NoError(t, s.ExportYOLO(exp, labels, images, "/datasets/r"))
	require.Equal(t, 2, exp.NumLabels)
	require.Equal(t, 3, exp.NumImages)

	l, err := storage.ReadFile(store, "labels/r_frame_0001.txt")
	require.NoError(t, err)
	require.Equal(t, "0 0.300000 0.500000 0.100000 0.100000\n1 0.700000 0.500000 0.100000 0.100000\n", string(l))

	classes, err := storage.ReadFile(store, "classes.txt")
	require.NoError(t, err)
	require.Equal(t, "person/adult\nfurniture/sofa\nobject/cup\n", string(classes))

	_, err = storage.ReadFile(store, "images/frame_0002.npy")
	require.NoError(t, err)
}

func TestExportYOLOPlaceholder(t *testing.T) {
	log := logs.NewTestingLog(t)
	s := newTestSession(t, true)
	src := &fakeSource{payloads: testPayloads(t)}
	items, err := s.FetchForRecords(context.Background(), src, "aa:bb:cc:00:11:22")
	require.NoError(t, err)
	require.True(t, items[2].Placeholder)

	store, err := storage.NewStorageFS(log, t.TempDir())
	require.NoError(t, err)
	exp := yolo.NewExporter(log, store, s.Registry, yolo.ImagesNPY)
	require.NoError(t, s.ExportYOLO(exp, items, items, "/datasets/r"))
	require.Equal(t, 3, exp.NumImages)

	b, err := storage.ReadFile(store, "images/frame_0002.npy")
	require.NoError(t, err)
	npix := thermal.DefaultShape.Pixels()
	require.Len(t, b, 128+npix*4)
	require.Equal(t, make([]byte, npix*4), b[128:])
}

func TestSummaryReport(t *testing.T) {
	s := newTestSession(t, true)
	src := &fakeSource{payloads: testPayloads(t)}
	items, err := s.FetchForRecords(context.Background(), src, "aa:bb:cc:00:11:22")
	require.NoError(t, err)

	sum := s.Finish(items)
	require.InDelta(t, 20.0, sum.MinC, 0.06)
	require.InDelta(t, 21.0+5.9, sum.MaxC, 0.06)
	require.InDelta(t, 1.05, sum.DurationS, 1e-9)
	require.Equal(t, 2, sum.Categories["person/adult"])

	buf := bytes.Buffer{}
	require.NoError(t, sum.WriteReport(&buf, s.Registry))
	report := buf.String()
	require.Contains(t, report, "Total Frames: 3\n")
	require.Contains(t, report, "Annotated Frames: 3\n")
	require.Contains(t, report, "Placeholders: 1\n")
	require.Contains(t, report, "Duration: 1.1 seconds")
	lines := strings.Split(report, "\n")
	found := false
	for _, line := range lines {
		if strings.HasPrefix(line, "  0: person/adult") {
			require.True(t, strings.HasSuffix(line, "(2 instances)"))
			found = true
		}
	}
	require.True(t, found)
}

func TestDriftMonitor(t *testing.T) {
	d := NewDriftMonitor(logs.NewTestingLog(t), 50)
	for i := 0; i < driftWindow-1; i++ {
		d.Add(80)
	}
	require.False(t, d.Warned())
	d.Add(80)
	require.True(t, d.Warned())
	require.Equal(t, 80.0, d.Mean())

	quiet := NewDriftMonitor(logs.NewTestingLog(t), 50)
	for i := 0; i < driftWindow*2; i++ {
		quiet.Add(10)
	}
	require.False(t, quiet.Warned())
}

func TestPrepareArchives(t *testing.T) {
	log := logs.NewTestingLog(t)
	store, err := framestore.Open(log, filepath.Join(t.TempDir(), "archive.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	s := newTestSession(t, false)
	src := &ArchivingSource{Remote: &fakeSource{payloads: testPayloads(t)}, Archive: store}
	stats, err := s.Prepare(context.Background(), src, "aa:bb:cc:00:11:22", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	// 2100 is exactly at the tolerance, which verification does not accept
	require.Equal(t, 1, stats.Matched)
	require.False(t, stats.Acceptable())

	n, err := store.Count("aa:bb:cc:00:11:22")
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	// A second session can work entirely from the archive
	s2 := newTestSession(t, false)
	items, err := s2.FetchForRecords(context.Background(), store, "aa:bb:cc:00:11:22")
	require.NoError(t, err)
	require.Equal(t, 2, s2.Summary.Matched)
	require.NotNil(t, items[1].Frame)
}

func TestOpenSource(t *testing.T) {
	log := logs.NewTestingLog(t)
	cfg := config.Default()
	cfg.Align.ToleranceMS = 250
	cfg.Align.Strategy = "nearest"
	opts := OptionsFromConfig(cfg, true)
	require.Equal(t, int64(250), opts.Align.ToleranceMS)
	require.Equal(t, align.StrategyNearest, opts.Align.Strategy)
	require.True(t, opts.ZeroFill)

	_, _, err := OpenSource(log, cfg, true)
	require.ErrorIs(t, err, ErrNoArchive)

	src, archive, err := OpenSource(log, cfg, false)
	require.NoError(t, err)
	require.Nil(t, archive)
	require.IsType(t, &tdengine.Client{}, src)

	cfg.Archive = filepath.Join(t.TempDir(), "archive.sqlite")
	src, archive, err = OpenSource(log, cfg, false)
	require.NoError(t, err)
	require.IsType(t, &ArchivingSource{}, src)
	require.NoError(t, archive.Close())

	src, archive, err = OpenSource(log, cfg, true)
	require.NoError(t, err)
	require.Same(t, archive, src)
	require.NoError(t, archive.Close())
}

func TestFetchRange(t *testing.T) {
	s := NewSession(logs.NewTestingLog(t), DefaultOptions())
	src := &fakeSource{payloads: testPayloads(t)}
	frames, err := s.FetchRange(context.Background(), src, "aa:bb:cc:00:11:22", 1000, 3000)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, int64(1050), frames[0].TimestampMS())
	require.Equal(t, int64(2100), frames[1].TimestampMS())
	require.Equal(t, 3, s.Summary.Frames)
	require.Equal(t, 1, s.Summary.Failed)
	require.Equal(t, 2, s.Cache.Len())
}
