// Package chunk splits document text into overlapping windows along
// sentence boundaries, the way the ingest pipeline's chunker does before
// handing chunks to the storage manager.
package chunk

import (
	"strconv"
	"strings"
)

// Chunk is a single windowed slice of a document's text, prior to storage.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// Chunker performs sentence-boundary-aware sliding-window chunking.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSize sets the target window size in bytes.
func WithSize(size int) Option {
	return func(c *Chunker) { c.size = size }
}

// WithOverlap sets the byte overlap carried into the next window.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) { c.overlap = overlap }
}

// New builds a Chunker with the given size/overlap, defaulting to 800/120
// (spec.md's defaults) when unset.
func New(opts ...Option) *Chunker {
	c := &Chunker{size: 800, overlap: 120}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		c.size = 800
	}
	if c.overlap < 0 || c.overlap >= c.size {
		c.overlap = 0
	}
	return c
}

// sentenceBoundaryChars are scanned for, back-to-front, within the current
// window to find a natural break before cutting a chunk.
const sentenceBoundaryChars = ".!?\n"

// Chunk splits text into overlapping, sentence-snapped windows. Each chunk's
// Metadata carries "section" (chunk_<n>) and, when title is non-empty,
// "title" — so downstream search results can surface the parent document's
// real title instead of a placeholder.
func (c *Chunker) Chunk(text string, title string) []Chunk {
	if text == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	n := 0
	textLen := len(text)

	for start < textLen {
		end := start + c.size
		if end > textLen {
			end = textLen
		}

		actualEnd := end
		if end < textLen {
			if boundary := findSentenceBoundary(text, start, end); boundary > start {
				actualEnd = boundary
			}
		}

		piece := strings.TrimSpace(text[start:actualEnd])
		if piece != "" {
			meta := map[string]any{
				"section": sectionName(n),
			}
			if title != "" {
				meta["title"] = title
			}
			chunks = append(chunks, Chunk{Text: piece, Metadata: meta})
			n++
		}

		// The window that reaches the end of the text is the last one.
		if actualEnd >= textLen {
			break
		}

		// Forward-progress guard: the window MUST advance even when the
		// only sentence boundary lies within the first overlap bytes of
		// the window. Without this, actualEnd <= start+overlap would make
		// the next start <= the current start.
		advance := actualEnd - c.overlap
		if advance <= start {
			advance = start + 1
		}
		start = advance
	}

	return chunks
}

// findSentenceBoundary scans backward from end (exclusive) within [start,end)
// for the first sentence-ending rune, returning the index just past it. It
// returns start when no boundary is found in the window, signalling the
// caller to fall back to the raw window edge.
func findSentenceBoundary(text string, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if strings.ContainsRune(sentenceBoundaryChars, rune(text[i])) {
			return i + 1
		}
	}
	return start
}

func sectionName(n int) string {
	return "chunk_" + strconv.Itoa(n)
}
