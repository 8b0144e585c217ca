package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()

	records, err := OpenRecordStore(dir)
	require.NoError(t, err)
	inverted, err := OpenInvertedIndex(dir)
	require.NoError(t, err)
	vector, err := OpenVectorIndex(dir, 3)
	require.NoError(t, err)

	m := NewManager(records, inverted, vector)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_UpsertChunkFansOutToAllThreeStores(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	doc := Document{ID: "d1", Title: "Doc", ModifiedAt: time.Now()}
	require.NoError(t, m.SaveDocument(ctx, doc))

	chunk := Chunk{ID: "c1", DocID: "d1", Text: "hybrid search engine", Embedding: []float32{1, 0, 0}, CreatedAt: time.Now()}
	require.NoError(t, m.UpsertChunk(ctx, chunk))

	hydrated, err := m.GetChunksByIDs(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Len(t, hydrated, 1)

	bm25Hits, err := m.SearchBM25(ctx, "hybrid", 10)
	require.NoError(t, err)
	require.Len(t, bm25Hits, 1)

	annHits, err := m.SearchANN(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, annHits, 1)
}

func TestManager_UpsertChunkWithoutEmbeddingSkipsVectorIndex(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveDocument(ctx, Document{ID: "d1", Title: "Doc", ModifiedAt: time.Now()}))
	require.NoError(t, m.UpsertChunk(ctx, Chunk{ID: "c1", DocID: "d1", Text: "no vector here", CreatedAt: time.Now()}))

	annHits, err := m.SearchANN(ctx, []float32{1, 2, 3}, 10)
	require.NoError(t, err)
	require.Empty(t, annHits)
}

func TestManager_DeleteDocumentRemovesFromAllStores(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveDocument(ctx, Document{ID: "d1", Title: "Doc", ModifiedAt: time.Now()}))
	require.NoError(t, m.UpsertChunk(ctx, Chunk{ID: "c1", DocID: "d1", Text: "deletable", Embedding: []float32{1, 1, 1}, CreatedAt: time.Now()}))

	require.NoError(t, m.DeleteDocument(ctx, "d1", []string{"c1"}))

	hydrated, err := m.GetChunksByIDs(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Empty(t, hydrated)

	bm25Hits, err := m.SearchBM25(ctx, "deletable", 10)
	require.NoError(t, err)
	require.Empty(t, bm25Hits)
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveDocument(ctx, Document{ID: "d1", Title: "Doc", ModifiedAt: time.Now()}))
	require.NoError(t, m.UpsertChunk(ctx, Chunk{ID: "c1", DocID: "d1", Text: "stats chunk", CreatedAt: time.Now()}))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocumentCount)
}
