// Package yolo exports aligned annotations and frames as a YOLO training dataset.
//
// Layout of the output:
//
//	labels/<data_id>_frame_NNNN.txt   one line per object: <class> cx cy w h
//	images/frame_NNNN.<png|jpg|npy>   optional
//	classes.txt                       class names, in id order
//	dataset.yaml
package yolo

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/annotation"
	"github.com/cyclopcam/thermview/pkg/storage"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"gopkg.in/yaml.v3"
)

type ImageFormat string

const (
	ImagesNone ImageFormat = ""
	ImagesPNG  ImageFormat = "png"
	ImagesJPEG ImageFormat = "jpg"
	ImagesNPY  ImageFormat = "npy"
)

func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ImagesNone, nil
	case "png":
		return ImagesPNG, nil
	case "jpg", "jpeg":
		return ImagesJPEG, nil
	case "npy":
		return ImagesNPY, nil
	}
	return "", fmt.Errorf("Unknown image format '%v'", s)
}

// Dataset is the content of dataset.yaml
type Dataset struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

// Exporter writes a dataset into a blob store.
// Class ids come from the registry, so classes.txt must be written after all labels.
type Exporter struct {
	log      logs.Log
	store    storage.Storage
	registry *annotation.Registry
	images   ImageFormat

	NumLabels int
	NumImages int
}

func NewExporter(log logs.Log, store storage.Storage, registry *annotation.Registry, images ImageFormat) *Exporter {
	return &Exporter{
		log:      log,
		store:    store,
		registry: registry,
		images:   images,
	}
}

func LabelFilename(dataID string, index int) string {
	return path.Join("labels", fmt.Sprintf("%v_frame_%04d.txt", dataID, index))
}

func ImageFilename(index int, format ImageFormat) string {
	return path.Join("images", fmt.Sprintf("frame_%04d.%v", index, format))
}

// LabelLines converts the objects of rec into YOLO label lines, registering new classes as needed
func LabelLines(rec *annotation.Record, registry *annotation.Registry) []string {
	lines := make([]string, 0, len(rec.Objects))
	for _, obj := range rec.Objects {
		id := registry.Register(obj.Category, obj.Subcategory)
		lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", id, obj.BBox.CX(), obj.BBox.CY(), obj.BBox.W(), obj.BBox.H()))
	}
	return lines
}

// WriteLabels writes the label file for frame index
func (e *Exporter) WriteLabels(index int, rec *annotation.Record) error {
	lines := LabelLines(rec, e.registry)
	content := strings.Join(lines, "\n")
	if len(lines) != 0 {
		content += "\n"
	}
	if err := storage.WriteFile(e.store, LabelFilename(rec.DataID, index), strings.NewReader(content)); err != nil {
		return err
	}
	e.NumLabels++
	return nil
}

// WriteImage writes the training image for frame index. It does nothing if images are disabled.
func (e *Exporter) WriteImage(index int, frame *thermal.Frame) error {
	if e.images == ImagesNone {
		return nil
	}
	var b []byte
	var err error
	if e.images == ImagesNPY {
		buf := bytes.Buffer{}
		err = WriteNPY(&buf, frame)
		b = buf.Bytes()
	} else {
		b, err = EncodeGray(frame, e.images)
	}
	if err != nil {
		return fmt.Errorf("Failed to encode image %v: %w", index, err)
	}
	if err := storage.WriteFile(e.store, ImageFilename(index, e.images), bytes.NewReader(b)); err != nil {
		return err
	}
	e.NumImages++
	return nil
}

// Finish writes classes.txt and dataset.yaml. datasetPath is the value of 'path' in dataset.yaml.
func (e *Exporter) Finish(datasetPath string) error {
	names := e.registry.Names()
	classes := strings.Join(names, "\n")
	if len(names) != 0 {
		classes += "\n"
	}
	if err := storage.WriteFile(e.store, "classes.txt", strings.NewReader(classes)); err != nil {
		return err
	}
	y, err := DatasetYAML(datasetPath, names)
	if err != nil {
		return err
	}
	if err := storage.WriteFile(e.store, "dataset.yaml", bytes.NewReader(y)); err != nil {
		return err
	}
	e.log.Infof("YOLO dataset: %v label files, %v images, %v classes", e.NumLabels, e.NumImages, len(names))
	return nil
}

func DatasetYAML(datasetPath string, names []string) ([]byte, error) {
	ds := Dataset{
		Path:  datasetPath,
		Train: "labels",
		Val:   "labels",
		NC:    len(names),
		Names: map[int]string{},
	}
	for i, n := range names {
		ds.Names[i] = n
	}
	return yaml.Marshal(&ds)
}
