package ingest

import (
	"fmt"
	"os"
)

// TextHandler reads a plain-text or Markdown file verbatim; Markdown
// structure is preserved as-is and left to the chunker's sentence-boundary
// scan rather than parsed, matching original_source's handlers.rs which
// treats .md and .txt identically at the extraction layer.
var TextHandler Handler = HandlerFunc(func(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("text handler: read %s: %w", path, err)
	}
	return string(data), nil
})

// PDFHandler is a placeholder: real PDF text extraction is out of scope
// per spec.md §1 ("file-format decoders ... specified only by the
// extract_text(path) -> string contract"). It returns an explanatory
// string rather than erroring, matching the original reference's behavior
// for unimplemented decoders.
var PDFHandler Handler = HandlerFunc(func(path string) (string, error) {
	return fmt.Sprintf("[PDF extraction not implemented: %s]", path), nil
})

// DefaultHandlers returns the handler map New expects, keyed by full MIME
// type as spec.md §4.2's "handler dispatch by full MIME type" requires.
func DefaultHandlers() map[string]Handler {
	return map[string]Handler{
		"text/plain":    TextHandler,
		"text/markdown": TextHandler,
		"application/pdf": PDFHandler,
	}
}
