// Package storage is a small blob store abstraction, used for exported images and reports.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/cyclopcam/logs"
)

var ErrNoPublicUrl = errors.New("Storage does not provide public URLs")
var ErrNoStorageConfigured = errors.New("No storage configured. Either 'filesystem' or 'gcs' must be set")
var ErrInvalidName = errors.New("Invalid artifact name")

// Storage is an abstraction of a blob store (eg a local directory, or a GCS bucket).
// Names are slash separated paths relative to the root of the export, such as
// "labels/r_frame_0001.txt" or "images/frame_0001.png".
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error

	// URL returns a public URL for the file, or ErrNoPublicUrl
	URL(name string) (string, error)
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type Config struct {
	Filesystem *ConfigFS  `json:"filesystem"`
	GCS        *ConfigGCS `json:"gcs"`
}

type ConfigFS struct {
	Root string `json:"root"` // Path to the root of the export directory
}

type ConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Prefix string `json:"prefix"` // Folder in the bucket that the export is written into
	Public bool   `json:"public"` // Whether the bucket is public, so that we can hand out direct URLs
}

// Open creates the store described by c
func Open(log logs.Log, c Config) (Storage, error) {
	if c.Filesystem != nil {
		return NewStorageFS(log, c.Filesystem.Root)
	} else if c.GCS != nil {
		return NewStorageGCS(log, c.GCS.Bucket, c.GCS.Prefix, c.GCS.Public)
	}
	return nil, ErrNoStorageConfigured
}

// Content types of the artifacts that exports produce
var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".npy":  "application/octet-stream",
	".txt":  "text/plain; charset=utf-8",
	".yaml": "application/yaml",
	".json": "application/json",
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
}

// ContentType returns the MIME type of an exported artifact, based on its extension
func ContentType(name string) string {
	if t, ok := contentTypes[path.Ext(name)]; ok {
		return t
	}
	return "application/octet-stream"
}

// validName rejects names that are absolute, empty, or climb out of the export root
func validName(name string) error {
	if name == "." || !fs.ValidPath(name) {
		return fmt.Errorf("%w '%v'", ErrInvalidName, name)
	}
	return nil
}

func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return fmt.Errorf("Failed to write %v: %w", name, err)
	}
	return errClose
}

func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
