package main

import (
	"context"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/tdengine"
	"github.com/cyclopcam/thermview/pkg/thermal"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("rawvideo", "Render raw thermal frames with a colormap and temperature scale, without annotations")
	configFile := parser.String("", "config", &argparse.Options{Help: "Config file (default thermview.json, if it exists)", Required: false, Default: ""})
	data := parser.String("d", "data", &argparse.Options{Help: "Thermal text data file. If omitted, frames are fetched for --mac", Required: false, Default: ""})
	mac := parser.String("m", "mac", &argparse.Options{Help: "Sensor MAC address, for fetching frames from TDengine", Required: false, Default: ""})
	from := parser.String("", "from", &argparse.Options{Help: "Start of the fetched range, UTC 'YYYY-MM-DD HH:MM:SS'", Required: false, Default: ""})
	to := parser.String("", "to", &argparse.Options{Help: "End of the fetched range, UTC 'YYYY-MM-DD HH:MM:SS'", Required: false, Default: ""})
	offline := parser.Flag("", "offline", &argparse.Options{Help: "Fetch frames only from the local archive"})
	output := parser.String("o", "output", &argparse.Options{Help: "Output video file", Required: false, Default: "raw_thermal.mp4"})
	outputDir := parser.String("", "output-dir", &argparse.Options{Help: "Output directory for --export-images", Required: false, Default: "raw_frames"})
	startFrame := parser.Int("", "start-frame", &argparse.Options{Help: "First frame to render", Required: false, Default: 0})
	numFrames := parser.Int("n", "num-frames", &argparse.Options{Help: "Number of frames to render (0 = all)", Required: false, Default: 0})
	fps := parser.Int("", "fps", &argparse.Options{Help: "Video frame rate", Required: false, Default: 0})
	scale := parser.Int("s", "scale", &argparse.Options{Help: "Upscale factor", Required: false, Default: 0})
	codec := parser.Selector("", "codec", []string{"mp4v", "avc1", "XVID", "MJPG"}, &argparse.Options{Help: "Video codec", Required: false})
	exportImages := parser.Flag("", "export-images", &argparse.Options{Help: "Write individual images instead of a video"})
	imageFormat := parser.Selector("", "image-format", []string{"png", "jpg"}, &argparse.Options{Help: "Image format for --export-images", Required: false, Default: "png"})
	relativeTime := parser.Flag("", "relative-time", &argparse.Options{Help: "Show frame times relative to the first frame"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	cfg, err := config.LoadConfigOrDefault(*configFile)
	check(err)
	if *mac != "" {
		cfg.Sensor.MAC = *mac
	}
	if *fps != 0 {
		cfg.Render.FPS = *fps
	}
	if *scale != 0 {
		cfg.Render.Scale = *scale
	}
	if *codec != "" {
		cfg.Render.Codec = *codec
	}
	check(cfg.Validate())

	opts := pipeline.OptionsFromConfig(cfg, false)
	opts.RelativeTime = *relativeTime
	session := pipeline.NewSession(logger, opts)

	var frames []*thermal.Frame
	if *data != "" {
		frames, err = session.LoadTextFrames(*data)
		check(err)
	} else {
		if cfg.Sensor.MAC == "" || *from == "" || *to == "" {
			fmt.Print(parser.Usage("Either --data, or --mac with --from and --to, must be provided"))
			os.Exit(1)
		}
		startMS, err := tdengine.ParseTime(*from)
		check(err)
		endMS, err := tdengine.ParseTime(*to)
		check(err)
		src, archive, err := pipeline.OpenSource(logger, cfg, *offline)
		check(err)
		if archive != nil {
			defer archive.Close()
		}
		frames, err = session.FetchRange(context.Background(), src, cfg.Sensor.MAC, startMS, endMS)
		check(err)
	}

	// Without annotations, every frame becomes an item with no record
	items := pipeline.Slice(session.AlignFrames(frames), *startFrame, *numFrames)
	logger.Infof("Rendering %v frames", len(items))

	var out sink.Sink
	if *exportImages {
		format, err := sink.ParseImageFormat(*imageFormat)
		check(err)
		store, err := cfg.OpenStorage(logger, *outputDir)
		check(err)
		out, err = sink.NewImageSink(logger, store, "", format)
		check(err)
	} else {
		out, err = sink.NewVideoSink(logger, *output, sink.VideoOptions{FPS: cfg.Render.FPS, Codec: cfg.Render.Codec})
		check(err)
	}
	err = session.ExportRaw(items, out)
	errClose := out.Close()
	check(err)
	check(errClose)

	session.Finish(items).Log(logger)
}
