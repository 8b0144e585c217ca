package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localdex/hybridsearch/internal/embed"
	"github.com/localdex/hybridsearch/internal/store"
)

// Storage is the subset of the storage manager the retriever depends on:
// independent BM25/ANN search plus batch hydration.
type Storage interface {
	SearchBM25(ctx context.Context, query string, limit int) ([]store.ScoredID, error)
	SearchANN(ctx context.Context, vector []float32, limit int) ([]store.ScoredID, error)
	GetChunksByIDs(ctx context.Context, ids []string) ([]store.Chunk, error)
}

// Config tunes the retriever's fusion weights and candidate pool sizes,
// matching spec.md §6's retrieval.* keys.
type Config struct {
	Alpha     float64
	Beta      float64
	RerankTop int
	FinalTop  int
}

// DefaultConfig returns spec.md §6's literal defaults.
func DefaultConfig() Config {
	return Config{Alpha: 0.35, Beta: 0.65, RerankTop: 50, FinalTop: 10}
}

// Retriever implements the hybrid BM25+ANN+rerank pipeline of spec.md §4.8.
type Retriever struct {
	storage  Storage
	embedder embed.Embedder
	reranker embed.Reranker
	cfg      Config
}

// New builds a Retriever. cfg zero values fall back to DefaultConfig.
func New(storage Storage, embedder embed.Embedder, reranker embed.Reranker, cfg Config) *Retriever {
	d := DefaultConfig()
	if cfg.Alpha == 0 && cfg.Beta == 0 {
		cfg.Alpha, cfg.Beta = d.Alpha, d.Beta
	}
	if cfg.RerankTop <= 0 {
		cfg.RerankTop = d.RerankTop
	}
	if cfg.FinalTop <= 0 {
		cfg.FinalTop = d.FinalTop
	}
	return &Retriever{storage: storage, embedder: embedder, reranker: reranker, cfg: cfg}
}

// Search runs the full pipeline: parallel lexical+dense retrieval, fusion,
// hydration, rerank, snippet synthesis, and reasoning-trace emission.
func (r *Retriever) Search(ctx context.Context, req Request) (Response, error) {
	overallStart := time.Now()

	k := req.K
	if k <= 0 {
		k = r.cfg.FinalTop
	}

	bm25Hits, annHits, stageBM25, stageANN, err := r.parallelRetrieve(ctx, req.Query)
	if err != nil {
		return Response{}, err
	}

	hybridStart := time.Now()
	candidates := fuse(bm25Hits, annHits, Weights{Alpha: r.cfg.Alpha, Beta: r.cfg.Beta}, r.cfg.RerankTop)
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	hybridStage := Stage{Name: "hybrid_union", ElapsedMs: time.Since(hybridStart).Milliseconds()}

	chunks, err := r.storage.GetChunksByIDs(ctx, ids)
	if err != nil {
		return Response{}, err
	}
	chunkByID := make(map[string]store.Chunk, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}

	// Preserve fused candidate order; skip candidates whose chunk row no
	// longer exists (best-effort coherence per spec.md §4.6).
	ordered := make([]store.Chunk, 0, len(candidates))
	for _, c := range candidates {
		if chunk, ok := chunkByID[c.ID]; ok {
			ordered = append(ordered, chunk)
		}
	}

	rerankStart := time.Now()
	scores, err := r.rerank(ctx, req.Query, ordered)
	if err != nil {
		slog.Warn("rerank failed, falling back to fused order", "error", err)
		scores = fallbackScores(candidates, ordered)
	}
	rerankStage := Stage{Name: "rerank_topK", ElapsedMs: time.Since(rerankStart).Milliseconds()}

	hits := make([]Hit, 0, len(ordered))
	for i, chunk := range ordered {
		title, _ := chunk.Metadata["title"].(string)
		hits = append(hits, Hit{
			ChunkID:   chunk.ID,
			DocID:     chunk.DocID,
			Title:     title,
			Snippet:   synthesizeSnippet(chunk.Text, req.Query),
			Score:     scores[i],
			Metadata:  chunk.Metadata,
			CreatedAt: chunk.CreatedAt,
		})
	}
	hits = applyFilters(hits, req.Filters, chunkByID)

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}

	return Response{
		Hits:   hits,
		Stages: []Stage{stageBM25, stageANN, hybridStage, rerankStage},
		TookMs: time.Since(overallStart).Milliseconds(),
	}, nil
}

// parallelRetrieve runs lexical and dense retrieval concurrently via
// errgroup.WithContext, the ambient cancellation signal spec.md §5
// describes. A failure in either branch degrades that branch to an empty
// result set rather than failing the whole query; only a failure of both
// is fatal.
func (r *Retriever) parallelRetrieve(ctx context.Context, query string) (bm25, ann []store.ScoredID, bm25Stage, annStage Stage, err error) {
	var bm25Err, annErr error
	var bm25Elapsed, annElapsed time.Duration

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		hits, searchErr := r.storage.SearchBM25(gctx, query, r.cfg.RerankTop)
		bm25Elapsed = time.Since(start)
		if searchErr != nil {
			bm25Err = searchErr
			return nil
		}
		bm25 = hits
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		if r.embedder == nil {
			annErr = errNoEmbedder
			annElapsed = time.Since(start)
			return nil
		}
		vecs, embedErr := r.embedder.Embed(gctx, []string{query})
		if embedErr != nil || len(vecs) == 0 {
			annErr = embedErr
			annElapsed = time.Since(start)
			return nil
		}
		hits, searchErr := r.storage.SearchANN(gctx, vecs[0], r.cfg.RerankTop)
		annElapsed = time.Since(start)
		if searchErr != nil {
			annErr = searchErr
			return nil
		}
		ann = hits
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, Stage{}, Stage{}, waitErr
	}

	if bm25Err != nil {
		slog.Warn("lexical retrieval degraded", "error", bm25Err)
	}
	if annErr != nil {
		slog.Warn("dense retrieval degraded", "error", annErr)
	}
	if bm25Err != nil && annErr != nil {
		return nil, nil, Stage{}, Stage{}, errBothRetrievalFailed
	}

	bm25Stage = Stage{Name: "bm25_topN", ElapsedMs: bm25Elapsed.Milliseconds()}
	annStage = Stage{Name: "ann_topN", ElapsedMs: annElapsed.Milliseconds()}
	return bm25, ann, bm25Stage, annStage, nil
}

// rerank builds (title, text) pairs in fused order and calls the reranker,
// returning scores in the same order as chunks (the reranker contract
// guarantees order preservation per spec.md §4.7).
func (r *Retriever) rerank(ctx context.Context, query string, chunks []store.Chunk) ([]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if r.reranker == nil {
		return fallbackScoresFromChunks(chunks), nil
	}

	pairs := make([]embed.Pair, len(chunks))
	for i, c := range chunks {
		title, _ := c.Metadata["title"].(string)
		pairs[i] = embed.Pair{Title: title, Body: c.Text}
	}
	return r.reranker.Rerank(ctx, query, pairs)
}

func fallbackScores(candidates []fusedCandidate, ordered []store.Chunk) []float32 {
	byID := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c.Score
	}
	out := make([]float32, len(ordered))
	for i, c := range ordered {
		out[i] = float32(byID[c.ID])
	}
	return out
}

func fallbackScoresFromChunks(chunks []store.Chunk) []float32 {
	return make([]float32, len(chunks))
}

// applyFilters narrows hits by the request's source and mime-group filters,
// reading "source" and "mimeGroup" from chunk metadata where present.
// Filtering never removes a hit whose metadata lacks a given field, since
// absence isn't a mismatch. The date range and the people filter are not
// applied.
func applyFilters(hits []Hit, f Filters, chunkByID map[string]store.Chunk) []Hit {
	if len(f.Sources) == 0 && len(f.MimeGroups) == 0 && len(f.People) == 0 {
		return hits
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if !matchesStringFilter(h.Metadata, "source", f.Sources) {
			continue
		}
		if !matchesStringFilter(h.Metadata, "mimeGroup", f.MimeGroups) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func matchesStringFilter(meta map[string]any, key string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	v, ok := meta[key].(string)
	if !ok {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
