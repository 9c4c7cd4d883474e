package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/perfstats"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	payloads []thermal.Payload
}

func (f *fakeSource) QueryRange(ctx context.Context, sensor string, startMS, endMS int64) ([]thermal.Payload, error) {
	out := []thermal.Payload{}
	for _, p := range f.payloads {
		if p.TimeMS >= startMS && p.TimeMS <= endMS {
			out = append(out, p)
		}
	}
	return out, nil
}

func testFrame(timeMS int64) *thermal.Frame {
	f := thermal.NewFrame(thermal.DefaultShape, thermal.UnitKelvin)
	for i := range f.Pixels {
		f.Pixels[i] = 290 + float32(i%60)/10
	}
	f.Timestamp = float64(timeMS) / 1000
	f.HasTimestamp = true
	return f
}

func newTestServer(t *testing.T, cfg *config.Config, source pipeline.PayloadSource) (*Server, *httptest.Server) {
	log := logs.NewTestingLog(t)
	session := pipeline.NewSession(log, pipeline.DefaultOptions())
	session.SetAnnotations([]annotation.Record{
		{DataTime: 1000, DataID: "r", Objects: []annotation.Object{
			{BBox: annotation.BBox{0.5, 0.5, 0.1, 0.1}, Category: "person", Subcategory: "adult", ObjectID: 1},
		}},
		{DataTime: 2000, DataID: "r", Objects: []annotation.Object{
			{BBox: annotation.BBox{0.5, 0.5, 0.1, 0.1}, Category: "person", Subcategory: "adult", ObjectID: 1},
			{BBox: annotation.BBox{0.2, 0.2, 0.1, 0.1}, Category: "vehicle", Subcategory: "car", ObjectID: 2},
		}},
	})
	session.AddFrames([]*thermal.Frame{testFrame(1000), testFrame(1500), testFrame(2000)})
	if cfg == nil {
		cfg = config.Default()
	}
	s, err := NewServer(log, cfg, session, source, 0)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestJSONRoutes(t *testing.T) {
	s, srv := newTestServer(t, nil, nil)

	resp, b := get(t, srv.URL+"/api/ping")
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(b), s.session.ID)

	resp, b = get(t, srv.URL+"/api/categories")
	require.Equal(t, 200, resp.StatusCode)
	cats := []categoryJSON{}
	require.NoError(t, json.Unmarshal(b, &cats))
	require.Equal(t, []categoryJSON{
		{ID: 0, Name: "person/adult", Color: "#ff0000", Count: 2},
		{ID: 1, Name: "vehicle/car", Color: "#ffffff", Count: 1},
	}, cats)

	resp, b = get(t, srv.URL+"/api/annotations")
	require.Equal(t, 200, resp.StatusCode)
	records := []annotation.Record{}
	require.NoError(t, json.Unmarshal(b, &records))
	require.Len(t, records, 2)
	require.Equal(t, "vehicle", records[1].Objects[1].Category)

	resp, b = get(t, srv.URL+"/api/summary")
	require.Equal(t, 200, resp.StatusCode)
	sum := pipeline.Summary{}
	require.NoError(t, json.Unmarshal(b, &sum))
	require.Equal(t, 3, sum.Frames)
	require.Equal(t, 2, sum.Annotated)

	resp, b = get(t, srv.URL+"/api/frames")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "[1000,1500,2000]", strings.TrimSpace(string(b)))
}

func TestFrameRoute(t *testing.T) {
	_, srv := newTestServer(t, nil, nil)

	resp, b := get(t, srv.URL+"/api/frame/1020")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	require.Equal(t, "1000", resp.Header.Get("X-Frame-Time"))
	require.Equal(t, []byte{0xff, 0xd8}, b[:2])

	resp, _ = get(t, srv.URL+"/api/frame/1500?raw=1&scale=2")
	require.Equal(t, 200, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/frame/9000")
	require.Equal(t, 404, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/frame/yesterday")
	require.Equal(t, 400, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/frame/1000?scale=100")
	require.Equal(t, 400, resp.StatusCode)

	resp, b = get(t, srv.URL+"/api/perf")
	require.Equal(t, 200, resp.StatusCode)
	perf := perfstats.Snapshot{}
	require.NoError(t, json.Unmarshal(b, &perf))
	require.Greater(t, perf.RenderMS, 0.0)
	require.Greater(t, perf.EncodeMS, 0.0)
}

func TestFrameFromSource(t *testing.T) {
	data, err := thermal.EncodeBinary(testFrame(5000), thermal.FormatDeciKelvin, thermal.EncodingHex)
	require.NoError(t, err)
	src := &fakeSource{payloads: []thermal.Payload{{TimeMS: 5000, Data: data}}}
	s, srv := newTestServer(t, nil, src)

	resp, _ := get(t, srv.URL+"/api/frame/5030")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "5000", resp.Header.Get("X-Frame-Time"))
	require.True(t, s.session.Cache.Has(5000))
}

func TestFrameFromSourceSkipsBadFrames(t *testing.T) {
	good, err := thermal.EncodeBinary(testFrame(5000), thermal.FormatDeciKelvin, thermal.EncodingHex)
	require.NoError(t, err)
	small := thermal.NewFrame(thermal.Shape{Width: 8, Height: 8}, thermal.UnitKelvin)
	wrongShape, err := thermal.EncodeBinary(small, thermal.FormatDeciKelvin, thermal.EncodingHex)
	require.NoError(t, err)
	src := &fakeSource{payloads: []thermal.Payload{
		{TimeMS: 5000, Data: good},
		{TimeMS: 5010, Data: wrongShape, Width: 8, Height: 8},
		{TimeMS: 5020, Data: "not a frame!"},
	}}
	s, srv := newTestServer(t, nil, src)

	resp, _ := get(t, srv.URL+"/api/frame/5015")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "5000", resp.Header.Get("X-Frame-Time"))
	require.False(t, s.session.Cache.Has(5010))
	require.False(t, s.session.Cache.Has(5020))

	_, b := get(t, srv.URL+"/api/summary")
	sum := pipeline.Summary{}
	require.NoError(t, json.Unmarshal(b, &sum))
	require.Equal(t, 2, sum.Failed)
}

func TestFrameRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.FramesPerMinute = 2
	_, srv := newTestServer(t, cfg, nil)
	for i := 0; i < 2; i++ {
		resp, _ := get(t, srv.URL+"/api/frame/1000?scale=1")
		require.Equal(t, 200, resp.StatusCode)
	}
	resp, _ := get(t, srv.URL+"/api/frame/1000?scale=1")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Other routes are not limited
	resp, _ = get(t, srv.URL+"/api/ping")
	require.Equal(t, 200, resp.StatusCode)
}

func TestStream(t *testing.T) {
	_, srv := newTestServer(t, nil, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream?fps=100&scale=2&start=1200"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	mt, b, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	header := streamHeaderJSON{}
	require.NoError(t, json.Unmarshal(b, &header))
	require.Equal(t, 2, header.Frames)
	require.Equal(t, 100, header.FPS)
	require.Less(t, header.VMin, header.VMax)

	for i := 0; i < header.Frames; i++ {
		mt, b, err = c.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, mt)
		info := streamFrameJSON{}
		require.NoError(t, json.Unmarshal(b, &info))
		require.Equal(t, i, info.Index)

		mt, b, err = c.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, mt)
		require.Equal(t, []byte{0xff, 0xd8}, b[:2])

		if i == 1 {
			require.Equal(t, int64(2000), info.TimeMS)
			require.Equal(t, 2, info.Objects)
		} else {
			require.Equal(t, 0, info.Objects)
		}
	}
}

func TestStaticViewer(t *testing.T) {
	_, srv := newTestServer(t, nil, nil)
	resp, b := get(t, srv.URL+"/")
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(b), "/api/stream")
}
