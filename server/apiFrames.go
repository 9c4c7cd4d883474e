package server

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/perfstats"
	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const jpegQuality = 85

type categoryJSON struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

type streamHeaderJSON struct {
	Frames int     `json:"frames"`
	FPS    int     `json:"fps"`
	VMin   float64 `json:"vmin"`
	VMax   float64 `json:"vmax"`
}

type streamFrameJSON struct {
	Index   int    `json:"index"`
	TimeMS  int64  `json:"timeMS"`
	DataID  string `json:"dataID,omitempty"`
	Objects int    `json:"objects"`
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time    int64  `json:"time"`
		Session string `json:"session"`
	}
	www.SendJSON(w, &pingJSON{
		Time:    time.Now().Unix(),
		Session: s.session.ID,
	})
}

func (s *Server) httpCategories(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	counts := annotation.CountInstances(s.session.Records)
	out := []categoryJSON{}
	for id, name := range s.session.Registry.Names() {
		c := s.session.Options.Palette.Color(render.Category(name))
		out = append(out, categoryJSON{
			ID:    id,
			Name:  name,
			Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
			Count: counts[name],
		})
	}
	www.SendJSON(w, out)
}

func (s *Server) httpAnnotations(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.session.Records)
}

func (s *Server) httpSummary(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.cacheLock.Lock()
	sum := s.session.Summary
	sum.Frames = max(sum.Frames, s.session.Cache.Len())
	s.cacheLock.Unlock()
	www.SendJSON(w, &sum)
}

// Moving averages of render, encode and fetch times
func (s *Server) httpPerf(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, perfstats.Stats.Snapshot())
}

// Timestamps of every cached frame, in milliseconds
func (s *Server) httpFrameTimes(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.cacheLock.Lock()
	times := s.session.Cache.Times()
	s.cacheLock.Unlock()
	www.SendJSON(w, times)
}

// GET /api/frame/:time?raw=1&scale=8 returns the frame closest to time (Unix milliseconds) as a JPEG
func (s *Server) httpFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	timeMS, err := strconv.ParseInt(params.ByName("time"), 10, 64)
	if err != nil {
		www.PanicBadRequestf("Invalid time '%v'", params.ByName("time"))
	}
	scale := s.scaleParam(r)
	frame, err := s.frameNear(r.Context(), timeMS)
	www.Check(err)
	if frame == nil {
		www.PanicNotFound()
	}
	vmin, vmax := s.bounds()
	img := s.renderFrame(frame, 0, vmin, vmax, scale, r.URL.Query().Get("raw") == "1")
	jpg, err := encodeJPEG(img)
	www.Check(err)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("X-Frame-Time", strconv.FormatInt(frame.TimestampMS(), 10))
	w.Write(jpg)
}

// GET /api/stream?start=&end=&fps=&raw=1 plays back cached frames over a websocket.
// The first message is a JSON header. Each frame is a JSON text message followed by a binary JPEG.
func (s *Server) httpStream(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	startMS := int64(math.MinInt64)
	endMS := int64(math.MaxInt64)
	if v := r.URL.Query().Get("start"); v != "" {
		startMS = www.RequiredQueryInt64(r, "start")
	}
	if v := r.URL.Query().Get("end"); v != "" {
		endMS = www.RequiredQueryInt64(r, "end")
	}
	fps := s.cfg.Render.FPS
	if v := r.URL.Query().Get("fps"); v != "" {
		fps = www.RequiredQueryInt(r, "fps")
	}
	if fps < 1 || fps > 100 {
		www.PanicBadRequestf("fps must be between 1 and 100")
	}
	scale := s.scaleParam(r)
	raw := r.URL.Query().Get("raw") == "1"

	frames := s.framesBetween(startMS, endMS)
	if len(frames) > s.maxStreamed {
		frames = frames[:s.maxStreamed]
	}
	vmin, vmax := s.bounds()

	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Stream websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	s.Log.Infof("Streaming %v frames at %v fps", len(frames), fps)
	if err := writeJSONMessage(c, &streamHeaderJSON{Frames: len(frames), FPS: fps, VMin: vmin, VMax: vmax}); err != nil {
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for i, frame := range frames {
		rec := s.recordNear(frame)
		img := s.renderFrame(frame, i, vmin, vmax, scale, raw)
		jpg, err := encodeJPEG(img)
		if err != nil {
			s.Log.Errorf("Failed to encode frame %v: %v", i, err)
			return
		}
		info := streamFrameJSON{Index: i, TimeMS: frame.TimestampMS()}
		if rec != nil {
			info.DataID = rec.DataID
			info.Objects = len(rec.Objects)
		}
		if err := writeJSONMessage(c, &info); err != nil {
			return
		}
		if err := c.WriteMessage(websocket.BinaryMessage, jpg); err != nil {
			s.Log.Infof("Stream closed by client: %v", err)
			return
		}
		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSONMessage(c *websocket.Conn, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) scaleParam(r *http.Request) int {
	scale := s.session.Options.Scale
	if v := r.URL.Query().Get("scale"); v != "" {
		scale = www.RequiredQueryInt(r, "scale")
	}
	if scale < 1 || scale > 16 {
		www.PanicBadRequestf("scale must be between 1 and 16")
	}
	return scale
}

// recordNear returns the annotation closest to the frame, within tolerance.
// Records are never modified after the server starts, so no lock is needed.
func (s *Server) recordNear(frame *thermal.Frame) *annotation.Record {
	if !frame.HasTimestamp {
		return nil
	}
	candidates := make([]align.Candidate[int], len(s.session.Records))
	for i := range s.session.Records {
		candidates[i] = align.Candidate[int]{TimeMS: s.session.Records[i].DataTime, Value: i}
	}
	res := align.Match(frame.TimestampMS(), candidates, s.session.Options.Align.ToleranceMS)
	if !res.Matched {
		return nil
	}
	return &s.session.Records[res.Candidate.Value]
}

func (s *Server) nearestLocked(timeMS int64) *thermal.Frame {
	res := align.MatchTimes(timeMS, s.session.Cache.Times(), s.session.Options.Align.ToleranceMS)
	if !res.Matched {
		return nil
	}
	return s.session.Cache.GetFrame(res.Candidate.TimeMS)
}

func encodeJPEG(img *image.RGBA) ([]byte, error) {
	defer perfstats.Since(&perfstats.Stats.EncodeNanoseconds, time.Now())
	return render.EncodeJPEG(img, jpegQuality)
}

func (s *Server) renderFrame(frame *thermal.Frame, index int, vmin, vmax float64, scale int, raw bool) *image.RGBA {
	defer perfstats.Since(&perfstats.Stats.RenderNanoseconds, time.Now())
	if raw {
		return render.RenderRaw(frame, render.RawParams{
			VMin:       vmin,
			VMax:       vmax,
			Scale:      scale,
			FrameIndex: index,
		})
	}
	return render.Render(frame.In(thermal.UnitCelsius), s.recordNear(frame), render.Params{
		VMin:       vmin,
		VMax:       vmax,
		Scale:      scale,
		FrameIndex: index,
		Palette:    s.session.Options.Palette,
	})
}
