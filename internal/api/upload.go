package api

import (
	"io"
	"os"
	"path/filepath"
)

// spoolToTemp copies an uploaded multipart file into a fresh temp
// directory under its original filename, so ingest's extension-based MIME
// classifier sees the real extension and the resulting Document.Title
// (derived from the basename) matches what the caller uploaded. The
// returned cleanup removes the whole temp directory.
func spoolToTemp(src io.Reader, filename string) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "hybridsearch-upload-*")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.RemoveAll(dir) }

	path = filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		cleanup()
		return "", nil, err
	}

	return path, cleanup, nil
}
