// Package config holds the JSON configuration shared by the thermview tools and server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/storage"
	"github.com/cyclopcam/thermview/pkg/tdengine"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

const DefaultFilename = "thermview.json"

type Sensor struct {
	MAC    string `json:"mac"`    // eg 02:00:00:1a:2b:3c
	Width  int    `json:"width"`  // Pixels per row (default 60)
	Height int    `json:"height"` // Rows (default 40)
}

type Align struct {
	ToleranceMS int64  `json:"toleranceMS"` // Maximum distance between a frame and its annotation
	Strategy    string `json:"strategy"`    // greedy, nearest, or optimal
}

type Render struct {
	Scale int    `json:"scale"` // Integer upscale factor
	FPS   int    `json:"fps"`   // Video frame rate
	Codec string `json:"codec"` // mp4v, avc1, XVID, MJPG
}

type Server struct {
	Port            int `json:"port"`
	FramesPerMinute int `json:"framesPerMinute"` // Rate limit per client IP on /api/frame
}

type Config struct {
	TDengine tdengine.Config `json:"tdengine"`
	Sensor   Sensor          `json:"sensor"`
	Align    Align           `json:"align"`
	Render   Render          `json:"render"`
	Storage  storage.Config  `json:"storage"`  // Destination of exported images and datasets
	Archive  string          `json:"archive"`  // Path to the sqlite payload archive. Empty to disable.
	ZeroFill *bool           `json:"zeroFill"` // Substitute an all-zero frame for missing frames. Defaults per tool.
	Server   Server          `json:"server"`
}

func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads filename. If filename is empty and the default file does not exist,
// it returns Default().
func LoadConfigOrDefault(filename string) (*Config, error) {
	if filename == "" {
		if _, err := os.Stat(DefaultFilename); errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
	}
	return LoadConfig(filename)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	c.TDengine.SetDefaults()
	if c.Sensor.Width == 0 {
		c.Sensor.Width = thermal.DefaultShape.Width
	}
	if c.Sensor.Height == 0 {
		c.Sensor.Height = thermal.DefaultShape.Height
	}
	if c.Align.ToleranceMS == 0 {
		c.Align.ToleranceMS = align.DefaultToleranceMS
	}
	if c.Align.Strategy == "" {
		c.Align.Strategy = align.StrategyGreedy.String()
	}
	if c.Render.Scale == 0 {
		c.Render.Scale = render.DefaultScale
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = sink.DefaultFPS
	}
	if c.Render.Codec == "" {
		c.Render.Codec = sink.DefaultCodec
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8090
	}
	if c.Server.FramesPerMinute == 0 {
		c.Server.FramesPerMinute = 600
	}
}

func (c *Config) Validate() error {
	if c.Sensor.Width < 0 || c.Sensor.Height < 0 {
		return fmt.Errorf("Sensor shape %v x %v is invalid", c.Sensor.Width, c.Sensor.Height)
	}
	if c.Align.ToleranceMS < 0 {
		return fmt.Errorf("Alignment tolerance %v is negative", c.Align.ToleranceMS)
	}
	if _, err := align.ParseStrategy(c.Align.Strategy); err != nil {
		return err
	}
	if c.Render.Scale < 1 {
		return fmt.Errorf("Render scale must be at least 1, but is %v", c.Render.Scale)
	}
	return nil
}

func (c *Config) Shape() thermal.Shape {
	return thermal.Shape{Width: c.Sensor.Width, Height: c.Sensor.Height}
}

// BatchOptions returns the configured alignment options
func (c *Config) BatchOptions() align.BatchOptions {
	strategy, _ := align.ParseStrategy(c.Align.Strategy)
	return align.BatchOptions{
		ToleranceMS: c.Align.ToleranceMS,
		Strategy:    strategy,
	}
}

// ZeroFillOr returns the configured zero-fill setting, or def if it was not set
func (c *Config) ZeroFillOr(def bool) bool {
	if c.ZeroFill == nil {
		return def
	}
	return *c.ZeroFill
}

// OpenStorage opens the configured blob store, or a filesystem store rooted at defaultRoot
// if none is configured.
func (c *Config) OpenStorage(log logs.Log, defaultRoot string) (storage.Storage, error) {
	if c.Storage.Filesystem == nil && c.Storage.GCS == nil {
		return storage.NewStorageFS(log, defaultRoot)
	}
	return storage.Open(log, c.Storage)
}
