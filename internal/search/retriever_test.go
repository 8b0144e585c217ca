package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localdex/hybridsearch/internal/embed"
	"github.com/localdex/hybridsearch/internal/store"
)

type fakeStorage struct {
	bm25   []store.ScoredID
	ann    []store.ScoredID
	chunks map[string]store.Chunk
}

func (f *fakeStorage) SearchBM25(ctx context.Context, query string, limit int) ([]store.ScoredID, error) {
	return f.bm25, nil
}

func (f *fakeStorage) SearchANN(ctx context.Context, vector []float32, limit int) ([]store.ScoredID, error) {
	return f.ann, nil
}

func (f *fakeStorage) GetChunksByIDs(ctx context.Context, ids []string) ([]store.Chunk, error) {
	out := make([]store.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		chunks: map[string]store.Chunk{
			"exact": {
				ID: "exact", DocID: "doc1", Text: "the quick brown fox loves golang",
				Metadata: map[string]any{"title": "Doc One"}, CreatedAt: time.Now(),
			},
			"paraphrase": {
				ID: "paraphrase", DocID: "doc2", Text: "a speedy auburn canine adores the go programming language",
				Metadata: map[string]any{"title": "Doc Two"}, CreatedAt: time.Now(),
			},
		},
	}
}

func TestRetriever_HybridRecall(t *testing.T) {
	// spec.md §8 scenario 4: exact-keyword chunk and a paraphrase chunk
	// both survive into the candidate pool for a keyword query.
	fs := newFakeStorage()
	fs.bm25 = []store.ScoredID{{ID: "exact", Score: 5.0}}
	fs.ann = []store.ScoredID{{ID: "paraphrase", Score: 0.9}, {ID: "exact", Score: 0.3}}

	r := New(fs, embed.NewStaticEmbedder(), embed.NewStaticReranker(), Config{RerankTop: 10, FinalTop: 10})
	resp, err := r.Search(context.Background(), Request{Query: "golang", K: 10})
	require.NoError(t, err)

	ids := hitIDs(resp.Hits)
	assert.Contains(t, ids, "exact")
	assert.Contains(t, ids, "paraphrase")
}

func TestRetriever_TraceOrdering(t *testing.T) {
	fs := newFakeStorage()
	fs.bm25 = []store.ScoredID{{ID: "exact", Score: 1}}

	r := New(fs, embed.NewStaticEmbedder(), embed.NewStaticReranker(), Config{})
	resp, err := r.Search(context.Background(), Request{Query: "fox", K: 5})
	require.NoError(t, err)

	require.Len(t, resp.Stages, 4)
	names := []string{"bm25_topN", "ann_topN", "hybrid_union", "rerank_topK"}
	for i, name := range names {
		assert.Equal(t, name, resp.Stages[i].Name)
		assert.GreaterOrEqual(t, resp.Stages[i].ElapsedMs, int64(0))
	}
}

func TestRetriever_TruncatesToK(t *testing.T) {
	fs := newFakeStorage()
	fs.bm25 = []store.ScoredID{{ID: "exact", Score: 1}, {ID: "paraphrase", Score: 0.5}}

	r := New(fs, embed.NewStaticEmbedder(), embed.NewStaticReranker(), Config{})
	resp, err := r.Search(context.Background(), Request{Query: "fox", K: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 1)
}

func TestRetriever_DegradesWhenEmbedderMissing(t *testing.T) {
	fs := newFakeStorage()
	fs.bm25 = []store.ScoredID{{ID: "exact", Score: 1}}

	r := New(fs, nil, nil, Config{})
	resp, err := r.Search(context.Background(), Request{Query: "fox", K: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Hits)
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}
