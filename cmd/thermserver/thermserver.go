package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/config"
	"github.com/cyclopcam/thermview/pkg/pipeline"
	"github.com/cyclopcam/thermview/server"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("thermserver", "Preview thermal frames and annotations in a browser")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file (default thermview.json, if it exists)", Required: false, Default: ""})
	data := parser.String("d", "data", &argparse.Options{Help: "Thermal text data file", Required: false, Default: ""})
	annotations := parser.String("a", "annotation", &argparse.Options{Help: "Annotation file (NDJSON)", Required: false, Default: ""})
	mac := parser.String("m", "mac", &argparse.Options{Help: "Sensor MAC address. Frames that are not loaded are fetched on demand", Required: false, Default: ""})
	offline := parser.Flag("", "offline", &argparse.Options{Help: "Fetch frames only from the local archive"})
	cacheFile := parser.String("", "cache", &argparse.Options{Help: "Frame cache snapshot, loaded at startup and saved at shutdown", Required: false, Default: ""})
	port := parser.Int("p", "port", &argparse.Options{Help: "HTTP port", Required: false, Default: 0})
	hotReloadWWW := parser.Flag("", "hot", &argparse.Options{Help: "Hot reload www instead of embedding into binary", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	cfg, err := config.LoadConfigOrDefault(*configFile)
	check(err)
	if *mac != "" {
		cfg.Sensor.MAC = *mac
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	check(cfg.Validate())

	session := pipeline.NewSession(logger, pipeline.OptionsFromConfig(cfg, false))
	if *cacheFile != "" {
		if err := session.Cache.LoadFile(*cacheFile); err == nil {
			logger.Infof("Loaded %v frames from %v", session.Cache.Len(), *cacheFile)
		} else if !errors.Is(err, fs.ErrNotExist) {
			check(err)
		}
	}
	if *annotations != "" {
		check(session.LoadAnnotations(*annotations))
	}
	if *data != "" {
		_, err := session.LoadTextFrames(*data)
		check(err)
	}

	var source pipeline.PayloadSource
	if cfg.Sensor.MAC != "" {
		src, archive, err := pipeline.OpenSource(logger, cfg, *offline)
		check(err)
		if archive != nil {
			defer archive.Close()
		}
		source = src
		if len(session.Records) != 0 && *data == "" {
			// Preload the frames of every annotation, so that playback does not wait on the database
			_, err := session.FetchForRecords(context.Background(), source, cfg.Sensor.MAC)
			check(err)
		}
	}

	serverFlags := 0
	if *hotReloadWWW {
		serverFlags |= server.ServerFlagHotReloadWWW
	}
	srv, err := server.NewServer(logger, cfg, session, source, serverFlags)
	check(err)
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	err = srv.ListenHTTP(fmt.Sprintf(":%v", cfg.Server.Port))
	if errors.Is(err, http.ErrServerClosed) {
		// Wait for in-flight requests, which may still be adding frames to the cache
		<-srv.ShutdownComplete
	} else {
		logger.Errorf("ListenHTTP returned: %v", err)
	}

	if *cacheFile != "" {
		if err := session.Cache.SaveFile(*cacheFile); err != nil {
			logger.Errorf("Failed to save frame cache: %v", err)
		} else {
			logger.Infof("Saved %v frames to %v", session.Cache.Len(), *cacheFile)
		}
	}
}
