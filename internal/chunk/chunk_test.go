package chunk

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundedTimeout() <-chan time.Time {
	return time.After(2 * time.Second)
}

func TestChunker_EmptyText(t *testing.T) {
	c := New()
	assert.Empty(t, c.Chunk("", "Doc"))
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := New(WithSize(800), WithOverlap(120))
	chunks := c.Chunk("A short paragraph.", "Doc")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph.", chunks[0].Text)
	assert.Equal(t, "chunk_0", chunks[0].Metadata["section"])
	assert.Equal(t, "Doc", chunks[0].Metadata["title"])
}

func TestChunker_SnapsToSentenceBoundary(t *testing.T) {
	c := New(WithSize(20), WithOverlap(4))
	text := "One two. Three four five six seven."
	chunks := c.Chunk(text, "")
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "."), "expected first chunk to end on a sentence boundary, got %q", chunks[0].Text)
}

func TestChunker_ForwardProgressGuardAlwaysTerminates(t *testing.T) {
	c := New(WithSize(5), WithOverlap(4))
	// All punctuation with an overlap one byte short of the window: every
	// window snaps to its own last byte, so each step advances the start by
	// a single byte, and Chunk must still run to the end of the input.
	text := strings.Repeat(".", 200)

	done := make(chan []Chunk, 1)
	go func() { done <- c.Chunk(text, "") }()

	select {
	case chunks := <-done:
		assert.NotEmpty(t, chunks)
	case <-boundedTimeout():
		t.Fatal("Chunk did not terminate: forward-progress guard failed")
	}
}

func TestChunker_OverlapCarriesContextBetweenChunks(t *testing.T) {
	c := New(WithSize(30), WithOverlap(10))
	text := strings.Repeat("word ", 40)
	chunks := c.Chunk(text, "")
	require.GreaterOrEqual(t, len(chunks), 2)
}

func TestChunker_MetadataSectionsAreSequential(t *testing.T) {
	c := New(WithSize(10), WithOverlap(2))
	text := strings.Repeat("abcdefghij ", 10)
	chunks := c.Chunk(text, "My Title")
	for i, ch := range chunks {
		assert.Equal(t, "chunk_"+itoaHelper(i), ch.Metadata["section"])
		assert.Equal(t, "My Title", ch.Metadata["title"])
	}
}

func itoaHelper(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
