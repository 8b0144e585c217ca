package ingest

import (
	"path/filepath"
	"strings"
)

// MimeClassifier maps a filesystem path to a full MIME type string by
// extension. File-format sniffing is out of scope per spec.md §1; this is
// a small built-in table, not a mime_guess port, but it is a real swappable
// component (a func type, not a hardcoded switch buried in the pipeline).
type MimeClassifier func(path string) string

var extensionMimeTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".pdf":      "application/pdf",
	".png":      "image/png",
	".jpg":      "image/jpeg",
	".jpeg":     "image/jpeg",
	".gif":      "image/gif",
}

// ClassifyByExtension is the default MimeClassifier.
func ClassifyByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionMimeTypes[ext]
}
