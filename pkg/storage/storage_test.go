package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestStorageFS(t *testing.T) {
	log := logs.NewTestingLog(t)
	root := filepath.Join(t.TempDir(), "out")
	s, err := Open(log, Config{Filesystem: &ConfigFS{Root: root}})
	require.NoError(t, err)

	require.NoError(t, WriteFile(s, "images/frame_0001.png", bytes.NewReader([]byte("hello"))))
	_, err = os.Stat(filepath.Join(root, "images", "frame_0001.png"))
	require.NoError(t, err)

	b, err := ReadFile(s, "images/frame_0001.png")
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	// Overwrite truncates
	require.NoError(t, WriteFile(s, "images/frame_0001.png", bytes.NewReader([]byte("hi"))))
	b, err = ReadFile(s, "images/frame_0001.png")
	require.NoError(t, err)
	require.Equal(t, "hi", string(b))

	_, err = s.URL("images/frame_0001.png")
	require.ErrorIs(t, err, ErrNoPublicUrl)

	require.NoError(t, s.DeleteFile("images/frame_0001.png"))
	_, err = ReadFile(s, "images/frame_0001.png")
	require.Error(t, err)

	_, err = s.WriteFile("../escape.txt")
	require.Error(t, err)
}

func TestOpenWithoutConfig(t *testing.T) {
	_, err := Open(logs.NewTestingLog(t), Config{})
	require.ErrorIs(t, err, ErrNoStorageConfigured)
}

func TestStorageFSPartialWrite(t *testing.T) {
	log := logs.NewTestingLog(t)
	root := t.TempDir()
	s, err := NewStorageFS(log, root)
	require.NoError(t, err)

	w, err := s.WriteFile("labels/r_frame_0001.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("0 0.5 0.5 0.1 0.1\n"))
	require.NoError(t, err)

	// Not visible until closed
	final := filepath.Join(root, "labels", "r_frame_0001.txt")
	_, err = os.Stat(final)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, w.Close())
	st, err := os.Stat(final)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), st.Mode().Perm())

	// No temporary files are left behind
	entries, err := os.ReadDir(filepath.Join(root, "labels"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestArtifactNames(t *testing.T) {
	s, err := NewStorageFS(logs.NewTestingLog(t), t.TempDir())
	require.NoError(t, err)
	for _, bad := range []string{"", ".", "/etc/passwd", "images/../../x.png", "images//x.png", "images/"} {
		_, err := s.WriteFile(bad)
		require.ErrorIs(t, err, ErrInvalidName, bad)
	}
	require.NoError(t, WriteFile(s, "frame..png", bytes.NewReader(nil)))

	obj, err := objectName("exports/run1", "images/frame_0001.png")
	require.NoError(t, err)
	require.Equal(t, "exports/run1/images/frame_0001.png", obj)
	obj, err = objectName("", "classes.txt")
	require.NoError(t, err)
	require.Equal(t, "classes.txt", obj)
	_, err = objectName("exports", "../other/classes.txt")
	require.ErrorIs(t, err, ErrInvalidName)

	u, err := publicURL("bucket", "exports/", "images/frame 1.png")
	require.NoError(t, err)
	require.Equal(t, "https://storage.googleapis.com/bucket/exports/images/frame%201.png", u)
}

func TestContentType(t *testing.T) {
	require.Equal(t, "image/png", ContentType("images/frame_0001.png"))
	require.Equal(t, "image/jpeg", ContentType("frame_0001.jpg"))
	require.Equal(t, "application/yaml", ContentType("dataset.yaml"))
	require.Equal(t, "text/plain; charset=utf-8", ContentType("classes.txt"))
	require.Equal(t, "application/octet-stream", ContentType("images/frame_0001.npy"))
	require.Equal(t, "application/octet-stream", ContentType("README"))
}
