package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/align"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/pkg/render"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/storage"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("annotatevideo", "Render thermal frames with their annotations into a video or a directory of images")
	configFile := parser.String("", "config", &argparse.Options{Help: "Config file (default thermview.json, if it exists)", Required: false, Default: ""})
	data := parser.String("d", "data", &argparse.Options{Help: "Thermal text data file. If omitted, frames are fetched for --mac", Required: false, Default: ""})
	mac := parser.String("m", "mac", &argparse.Options{Help: "Sensor MAC address, for fetching frames from TDengine", Required: false, Default: ""})
	offline := parser.Flag("", "offline", &argparse.Options{Help: "Fetch frames only from the local archive"})
	annotations := parser.String("a", "annotation", &argparse.Options{Help: "Annotation file (NDJSON)", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Output video file", Required: false, Default: "annotated_thermal.mp4"})
	outputDir := parser.String("", "output-dir", &argparse.Options{Help: "Output directory for --export-images", Required: false, Default: "annotated_frames"})
	startFrame := parser.Int("", "start-frame", &argparse.Options{Help: "First frame to render", Required: false, Default: 0})
	numFrames := parser.Int("n", "num-frames", &argparse.Options{Help: "Number of frames to render (0 = all)", Required: false, Default: 0})
	fps := parser.Int("", "fps", &argparse.Options{Help: "Video frame rate", Required: false, Default: 0})
	scale := parser.Int("s", "scale", &argparse.Options{Help: "Upscale factor", Required: false, Default: 0})
	codec := parser.Selector("", "codec", []string{"mp4v", "avc1", "XVID", "MJPG"}, &argparse.Options{Help: "Video codec", Required: false})
	strategy := parser.Selector("", "strategy", []string{"greedy", "nearest", "optimal"}, &argparse.Options{Help: "Batch alignment strategy, for fetched frames", Required: false})
	exportImages := parser.Flag("", "export-images", &argparse.Options{Help: "Write individual images instead of a video"})
	imageFormat := parser.Selector("", "image-format", []string{"png", "jpg"}, &argparse.Options{Help: "Image format for --export-images", Required: false, Default: "png"})
	relativeTime := parser.Flag("", "relative-time", &argparse.Options{Help: "Show frame times relative to the first frame"})
	createSummary := parser.Flag("", "create-summary", &argparse.Options{Help: "Write dataset_summary.txt and category_legend.png next to the output"})
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
	if *strategy != "" {
		cfg.Align.Strategy = *strategy
	}
	check(cfg.Validate())
	if *data == "" && cfg.Sensor.MAC == "" {
		fmt.Print(parser.Usage("Either --data or --mac must be provided"))
		os.Exit(1)
	}

	opts := pipeline.OptionsFromConfig(cfg, false)
	opts.RelativeTime = *relativeTime
	session := pipeline.NewSession(logger, opts)
	logger.Infof("Session %v, alignment %v with tolerance %v ms", session.ID, opts.Align.Strategy, opts.Align.ToleranceMS)
	if opts.Align.Strategy != align.StrategyGreedy {
		logger.Infof("Non-default alignment strategy. Match counts may differ from greedy exports")
	}
	check(session.LoadAnnotations(*annotations))

	var items []pipeline.Item
	if *data != "" {
		frames, err := session.LoadTextFrames(*data)
		check(err)
		items = session.AlignFrames(frames)
	} else {
		src, archive, err := pipeline.OpenSource(logger, cfg, *offline)
		check(err)
		if archive != nil {
			defer archive.Close()
		}
		items, err = session.FetchForRecords(context.Background(), src, cfg.Sensor.MAC)
		check(err)
	}
	items = pipeline.Slice(items, *startFrame, *numFrames)
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
	err = session.ExportRendered(items, out)
	errClose := out.Close()
	check(err)
	check(errClose)

	sum := session.Finish(items)
	sum.Log(logger)
	if session.Drift.Warned() {
		logger.Warnf("Mean alignment delta is %.1f ms. Check the sensor clock", session.Drift.Mean())
	}

	if *createSummary {
		dir := filepath.Dir(*output)
		if *exportImages {
			dir = *outputDir
		}
		store, err := storage.NewStorageFS(logger, dir)
		check(err)
		report := bytes.Buffer{}
		check(sum.WriteReport(&report, session.Registry))
		check(storage.WriteFile(store, "dataset_summary.txt", &report))

		legend := bytes.Buffer{}
		check(png.Encode(&legend, render.Legend(opts.Palette, sum.Categories, 300, 200)))
		check(storage.WriteFile(store, "category_legend.png", &legend))
		logger.Infof("Summary report written to %v", filepath.Join(store.Root, "dataset_summary.txt"))
	}
}
