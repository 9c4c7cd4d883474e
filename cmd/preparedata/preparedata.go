package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/pkg/sink"
	"github.com/cyclopcam/thermview/pkg/storage"
	"github.com/cyclopcam/thermview/pkg/tdengine"
	"github.com/cyclopcam/thermview/pkg/yolo"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("preparedata", "Fetch the thermal frames around a set of annotations, check that they line up, and export a training dataset")
	configFile := parser.String("", "config", &argparse.Options{Help: "Config file (default thermview.json, if it exists)", Required: false, Default: ""})
	annotations := parser.String("a", "annotation", &argparse.Options{Help: "Annotation file (NDJSON)", Required: true})
	mac := parser.String("m", "mac", &argparse.Options{Help: "Sensor MAC address", Required: false, Default: ""})
	output := parser.String("o", "output", &argparse.Options{Help: "Output directory", Required: false, Default: "training_data"})
	format := parser.Selector("f", "format", []string{"yolo", "video", "both"}, &argparse.Options{Help: "What to export", Required: false, Default: "yolo"})
	buffer := parser.Int("b", "buffer", &argparse.Options{Help: "Seconds of frames to fetch before the first and after the last annotation", Required: false, Default: 5})
	offline := parser.Flag("", "offline", &argparse.Options{Help: "Use only frames that are already in the archive"})
	skipVerify := parser.Flag("", "skip-verify", &argparse.Options{Help: "Do not stop when the match rate is poor"})
	yes := parser.Flag("y", "yes", &argparse.Options{Help: "Continue without asking when the match rate is poor"})
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
	if cfg.Sensor.MAC == "" {
		fmt.Print(parser.Usage("--mac must be provided, either on the command line or in the config"))
		os.Exit(1)
	}
	if cfg.Archive == "" {
		cfg.Archive = filepath.Join(*output, "raw_data", "frames.sqlite")
	}
	check(cfg.Validate())

	logger.Infof("Step 1: Read annotations")
	prep := pipeline.NewSession(logger, pipeline.OptionsFromConfig(cfg, true))
	check(prep.LoadAnnotations(*annotations))

	logger.Infof("Step 2: Time range")
	bufferDuration := time.Duration(*buffer) * time.Second
	startMS, endMS, _ := annotation.TimeRange(prep.Records, bufferDuration)
	logger.Infof("Fetching %v to %v UTC", tdengine.FormatTime(startMS), tdengine.FormatTime(endMS))

	logger.Infof("Step 3: Fetch thermal data into %v", cfg.Archive)
	src, archive, err := pipeline.OpenSource(logger, cfg, *offline)
	check(err)
	defer archive.Close()
	stats, err := prep.Prepare(context.Background(), src, cfg.Sensor.MAC, bufferDuration)
	check(err)
	if n, err := archive.Count(cfg.Sensor.MAC); err == nil {
		logger.Infof("Archive holds %v frames of %v", n, cfg.Sensor.MAC)
	}

	logger.Infof("Step 4: Verify annotation to frame match")
	if !stats.Acceptable() && !*skipVerify {
		logger.Warnf("Low match rate. Some annotations have no frame. Consider adjusting the time range or buffer")
		if !*yes && !confirm("Continue anyway? (y/n): ") {
			logger.Infof("Aborted")
			os.Exit(1)
		}
	}

	logger.Infof("Step 5: Export training dataset")
	formats := []string{*format}
	if *format == "both" {
		formats = []string{"yolo", "video"}
	}
	for _, f := range formats {
		switch f {
		case "yolo":
			exportYOLO(logger, cfg, archive, prep.Records, filepath.Join(*output, "yolo"))
		case "video":
			exportVideo(logger, cfg, archive, prep.Records, filepath.Join(*output, "video"))
		}
	}

	store, err := storage.NewStorageFS(logger, *output)
	check(err)
	fetched := []pipeline.Item{}
	for _, f := range prep.Cache.Range(startMS, endMS) {
		fetched = append(fetched, pipeline.Item{Frame: f})
	}
	sum := prep.Finish(fetched)
	report := bytes.Buffer{}
	check(sum.WriteReport(&report, prep.Registry))
	fmt.Fprintf(&report, "\nMatch rate: %.1f%% (%v of %v), mean delta %.1f ms, max delta %v ms\n",
		stats.Rate*100, stats.Matched, stats.Total, stats.MeanDeltaMS, stats.MaxDeltaMS)
	check(storage.WriteFile(store, "summary.txt", &report))
	logger.Infof("Training data ready in %v", store.Root)
}

// Both exports read the frames back from the archive, in a fresh session, so that
// their counts only describe the export.
func exportSession(logger logs.Log, cfg *config.Config, src pipeline.PayloadSource, records []annotation.Record, zeroFill bool) (*pipeline.Session, []pipeline.Item) {
	opts := pipeline.OptionsFromConfig(cfg, zeroFill)
	opts.ZeroFill = zeroFill
	s := pipeline.NewSession(logger, opts)
	s.SetAnnotations(records)
	items, err := s.FetchForRecords(context.Background(), src, cfg.Sensor.MAC)
	check(err)
	return s, items
}

func exportYOLO(logger logs.Log, cfg *config.Config, src pipeline.PayloadSource, records []annotation.Record, dir string) {
	s, items := exportSession(logger, cfg, src, records, true)
	store, err := storage.NewStorageFS(logger, dir)
	check(err)
	exp := yolo.NewExporter(logger, store, s.Registry, yolo.ImagesNPY)
	check(s.ExportYOLO(exp, items, items, store.Root))
	s.Finish(items).Log(logger)
}

func exportVideo(logger logs.Log, cfg *config.Config, src pipeline.PayloadSource, records []annotation.Record, dir string) {
	s, items := exportSession(logger, cfg, src, records, false)
	out, err := sink.NewVideoSink(logger, filepath.Join(dir, "training_data_preview.mp4"), sink.VideoOptions{FPS: cfg.Render.FPS, Codec: cfg.Render.Codec})
	check(err)
	err = s.ExportRendered(items, out)
	errClose := out.Close()
	check(err)
	check(errClose)
	s.Finish(items).Log(logger)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
