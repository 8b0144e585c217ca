package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteRecordStore_SaveAndGetDocument(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenRecordStore(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	doc := Document{ID: "doc1", Title: "Hello", Path: "/tmp/hello.txt", Mime: "text/plain", Source: "file", ModifiedAt: time.Now()}
	require.NoError(t, s.SaveDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, "Hello", got.Title)
}

func TestSQLiteRecordStore_GetDocument_NotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenRecordStore(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetDocument(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRecordStore_UpsertChunkRoundTripsEmbedding(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenRecordStore(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveDocument(ctx, Document{ID: "doc1", Title: "T", ModifiedAt: time.Now()}))

	chunk := Chunk{
		ID:        "chunk1",
		DocID:     "doc1",
		Text:      "some text",
		Metadata:  map[string]any{"section": "chunk_0"},
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.UpsertChunk(ctx, chunk))

	got, err := s.GetChunksByIDs(ctx, []string{"chunk1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, got[0].Embedding, 1e-6)
}

func TestSQLiteRecordStore_UpsertChunkIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenRecordStore(dir)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveDocument(ctx, Document{ID: "doc1", Title: "T", ModifiedAt: time.Now()}))

	chunk := Chunk{ID: "c1", DocID: "doc1", Text: "v1", CreatedAt: time.Now()}
	require.NoError(t, s.UpsertChunk(ctx, chunk))
	chunk.Text = "v2"
	require.NoError(t, s.UpsertChunk(ctx, chunk))

	got, err := s.GetChunksByIDs(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "v2", got[0].Text)
}
