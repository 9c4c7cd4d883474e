package storage

import (
	"context"
	"io"
	"net/url"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
)

// StorageGCS writes exports into a folder of a Google Cloud Storage bucket
type StorageGCS struct {
	bucketName string
	prefix     string
	bucket     *gcs.BucketHandle
	isPublic   bool
	log        logs.Log
}

// NewStorageGCS uses the application default credentials
func NewStorageGCS(log logs.Log, bucketName, prefix string, isPublic bool) (*StorageGCS, error) {
	ctx := context.Background()
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("Exporting to gs://%v", path.Join(bucketName, prefix))
	return &StorageGCS{
		bucketName: bucketName,
		prefix:     prefix,
		bucket:     client.Bucket(bucketName),
		isPublic:   isPublic,
		log:        log,
	}, nil
}

// objectName places an artifact inside the export folder
func objectName(prefix, name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	return path.Join(prefix, name), nil
}

func (s *StorageGCS) object(name string) (*gcs.ObjectHandle, error) {
	obj, err := objectName(s.prefix, name)
	if err != nil {
		return nil, err
	}
	return s.bucket.Object(obj), nil
}

// WriteFile tags the object with the artifact's content type, so that images and reports open in a browser
func (s *StorageGCS) WriteFile(name string) (io.WriteCloser, error) {
	obj, err := s.object(name)
	if err != nil {
		return nil, err
	}
	w := obj.NewWriter(context.Background())
	w.ContentType = ContentType(name)
	return w, nil
}

func (s *StorageGCS) ReadFile(name string) (*File, error) {
	obj, err := s.object(name)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(context.Background())
	if err != nil {
		return nil, err
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *StorageGCS) DeleteFile(name string) error {
	obj, err := s.object(name)
	if err != nil {
		return err
	}
	return obj.Delete(context.Background())
}

func (s *StorageGCS) URL(name string) (string, error) {
	if !s.isPublic {
		return "", ErrNoPublicUrl
	}
	return publicURL(s.bucketName, s.prefix, name)
}

func publicURL(bucket, prefix, name string) (string, error) {
	obj, err := objectName(prefix, name)
	if err != nil {
		return "", err
	}
	return "https://storage.googleapis.com/" + bucket + "/" + (&url.URL{Path: obj}).EscapedPath(), nil
}
