package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/pkg/storage"
	"github.com/cyclopcam/thermview/pkg/yolo"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("exportyolo", "Export aligned annotations as a YOLO dataset")
	configFile := parser.String("", "config", &argparse.Options{Help: "Config file (default thermview.json, if it exists)", Required: false, Default: ""})
	data := parser.String("d", "data", &argparse.Options{Help: "Thermal text data file. If omitted, frames are fetched for --mac", Required: false, Default: ""})
	mac := parser.String("m", "mac", &argparse.Options{Help: "Sensor MAC address, for fetching frames from TDengine", Required: false, Default: ""})
	offline := parser.Flag("", "offline", &argparse.Options{Help: "Fetch frames only from the local archive"})
	annotations := parser.String("a", "annotation", &argparse.Options{Help: "Annotation file (NDJSON)", Required: true})
	outputDir := parser.String("o", "output-dir", &argparse.Options{Help: "Output directory, unless the config names a store", Required: false, Default: "yolo_dataset"})
	exportImages := parser.Flag("", "export-images", &argparse.Options{Help: "Write a training image for every frame"})
	imageFormat := parser.Selector("", "image-format", []string{"png", "jpg", "npy"}, &argparse.Options{Help: "Training image format", Required: false, Default: "npy"})
	strategy := parser.Selector("", "strategy", []string{"greedy", "nearest", "optimal"}, &argparse.Options{Help: "Batch alignment strategy, for fetched frames", Required: false})
	noZeroFill := parser.Flag("", "no-zero-fill", &argparse.Options{Help: "Leave out annotations without a frame, instead of giving them an all-zero frame"})
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
	if *strategy != "" {
		cfg.Align.Strategy = *strategy
	}
	check(cfg.Validate())
	if *data == "" && cfg.Sensor.MAC == "" {
		fmt.Print(parser.Usage("Either --data or --mac must be provided"))
		os.Exit(1)
	}

	// A training set wants one sample per annotation, so zero-fill is on unless disabled
	opts := pipeline.OptionsFromConfig(cfg, !*noZeroFill)
	if *noZeroFill {
		opts.ZeroFill = false
	}
	session := pipeline.NewSession(logger, opts)
	check(session.LoadAnnotations(*annotations))

	images := yolo.ImagesNone
	if *exportImages {
		images, err = yolo.ParseImageFormat(*imageFormat)
		check(err)
	}

	var labelItems, imageItems []pipeline.Item
	if *data != "" {
		frames, err := session.LoadTextFrames(*data)
		check(err)
		labelItems = session.AlignRecords(frames)
		imageItems = session.AlignFrames(frames)
	} else {
		src, archive, err := pipeline.OpenSource(logger, cfg, *offline)
		check(err)
		if archive != nil {
			defer archive.Close()
		}
		labelItems, err = session.FetchForRecords(context.Background(), src, cfg.Sensor.MAC)
		check(err)
		imageItems = labelItems
	}

	store, err := cfg.OpenStorage(logger, *outputDir)
	check(err)
	exp := yolo.NewExporter(logger, store, session.Registry, images)
	check(session.ExportYOLO(exp, labelItems, imageItems, datasetPath(cfg, store)))

	sum := session.Finish(imageItems)
	sum.Log(logger)
	report := bytes.Buffer{}
	check(sum.WriteReport(&report, session.Registry))
	check(storage.WriteFile(store, "export_summary.txt", &report))
	if u, err := store.URL("dataset.yaml"); err == nil {
		logger.Infof("Dataset published at %v", u)
	}
}

// datasetPath is the location of the dataset, as written into dataset.yaml
func datasetPath(cfg *config.Config, store storage.Storage) string {
	if fs, ok := store.(*storage.StorageFS); ok {
		return fs.Root
	}
	if cfg.Storage.GCS != nil {
		return "gs://" + path.Join(cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Prefix)
	}
	return "."
}
