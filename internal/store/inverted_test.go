package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBleveInvertedIndex_IndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenInvertedIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	chunks := []Chunk{
		{ID: "c1", DocID: "d1", Text: "the quick brown fox jumps over the lazy dog"},
		{ID: "c2", DocID: "d1", Text: "completely unrelated text about cooking pasta"},
	}
	require.NoError(t, idx.Index(ctx, chunks))

	hits, err := idx.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c1", hits[0].ID)
	require.Contains(t, hits[0].MatchedTerms, "fox")
}

func TestBleveInvertedIndex_IndexIsIdempotentByID(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenInvertedIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []Chunk{{ID: "c1", DocID: "d1", Text: "alpha"}}))
	require.NoError(t, idx.Index(ctx, []Chunk{{ID: "c1", DocID: "d1", Text: "beta"}}))

	hits, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = idx.Search(ctx, "beta", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestBleveInvertedIndex_Delete(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenInvertedIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []Chunk{{ID: "c1", DocID: "d1", Text: "ephemeral"}}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	hits, err := idx.Search(ctx, "ephemeral", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestBleveInvertedIndex_EmptyQueryReturnsNoHits(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenInvertedIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(context.Background(), "", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestBleveInvertedIndex_Stats(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenInvertedIndex(dir)
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []Chunk{
		{ID: "c1", DocID: "d1", Text: "one"},
		{ID: "c2", DocID: "d1", Text: "two"},
	}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.DocumentCount)
}
