// Package server is the HTTP preview service: it serves rendered frames on demand,
// streams annotated playback over a websocket, and hosts a small viewer page.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/perfstats"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	ServerFlagHotReloadWWW = 1 // Serve the viewer from server/www on disk, instead of the embedded copy
)

type Server struct {
	HotReloadWWW     bool
	Log              logs.Log
	ShutdownComplete chan error // Receives the result of Shutdown, once all requests have finished

	cfg     *config.Config
	session *pipeline.Session
	source  pipeline.PayloadSource // Optional. Frames missing from the cache are fetched from here.
	sensor  string

	// The frame cache is not thread safe, so all access to session.Cache goes through cacheLock
	cacheLock   sync.Mutex
	boundsN     int // Number of cached frames when bounds were computed
	vmin        float64
	vmax        float64
	signalIn    chan os.Signal
	httpServer  *http.Server
	httpRouter  *httprouter.Router
	wsUpgrader  websocket.Upgrader
	maxStreamed int
}

// NewServer serves the frames and annotations of session. source may be nil.
func NewServer(log logs.Log, cfg *config.Config, session *pipeline.Session, source pipeline.PayloadSource, serverFlags int) (*Server, error) {
	s := &Server{
		HotReloadWWW: (serverFlags & ServerFlagHotReloadWWW) != 0,
		Log:          log,
		cfg:          cfg,
		session:      session,
		source:       source,
		sensor:       cfg.Sensor.MAC,
		maxStreamed:  10000,
	}
	s.ShutdownComplete = make(chan error, 1)
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// port example: ":8090"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
	}
	if s.httpServer == nil {
		s.ShutdownComplete <- nil
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.ShutdownComplete <- err
}

// frameNear returns the cached frame closest to timeMS, fetching from the source if the cache has none.
// Returns nil if there is no frame within tolerance.
func (s *Server) frameNear(ctx context.Context, timeMS int64) (*thermal.Frame, error) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()
	if f := s.nearestLocked(timeMS); f != nil {
		return f, nil
	}
	if s.source == nil {
		return nil, nil
	}
	tol := s.session.Options.Align.ToleranceMS
	start := time.Now()
	payloads, err := s.source.QueryRange(ctx, s.sensor, timeMS-tol, timeMS+tol)
	perfstats.Since(&perfstats.Stats.FetchNanoseconds, start)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch frames near %v: %w", timeMS, err)
	}
	s.session.DecodePayloads(payloads)
	return s.nearestLocked(timeMS), nil
}

// framesBetween returns the cached frames in [startMS, endMS], in time order
func (s *Server) framesBetween(startMS, endMS int64) []*thermal.Frame {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()
	return s.session.Cache.Range(startMS, endMS)
}

// bounds returns the Celsius display range of everything in the cache.
// It is recomputed when the cache grows, so frames fetched later share one brightness scale.
func (s *Server) bounds() (vmin, vmax float64) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()
	n := s.session.Cache.Len()
	if n != s.boundsN || n == 0 {
		items := []pipeline.Item{}
		for _, t := range s.session.Cache.Times() {
			items = append(items, pipeline.Item{Frame: s.session.Cache.GetFrame(t)})
		}
		s.vmin, s.vmax = pipeline.Bounds(items)
		s.boundsN = n
	}
	return s.vmin, s.vmax
}
