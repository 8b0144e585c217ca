package search

import (
	"sort"

	"github.com/localdex/hybridsearch/internal/store"
)

// Weights are the fusion coefficients from spec.md §4.8: fused(id) =
// alpha*bm25 + beta*ann. Unlike the teacher's RRFFusion (rank-based,
// generalized to N retrievers), this module follows the spec's simpler
// weighted-sum formula verbatim, grounded on original_source's
// HybridIndex::search. Both inputs are used as they arrive: BM25 scores are
// unbounded while ANN similarities lie in [0, 1], and neither side is
// normalized before weighting.
type Weights struct {
	Alpha float64
	Beta  float64
}

// candidateScore carries both raw component scores through fusion so
// callers can inspect them (e.g. for a debug trace) alongside the fused
// score.
type candidateScore struct {
	ID   string
	BM25 float64
	ANN  float64
}

// fuse builds the id -> (bm25, ann) map (missing sides default to 0),
// computes the weighted sum, and returns candidates sorted by fused score
// descending, ties broken by lexicographic id for determinism, truncated
// to limit.
func fuse(bm25 []store.ScoredID, ann []store.ScoredID, w Weights, limit int) []fusedCandidate {
	byID := make(map[string]*candidateScore)

	get := func(id string) *candidateScore {
		c, ok := byID[id]
		if !ok {
			c = &candidateScore{ID: id}
			byID[id] = c
		}
		return c
	}

	for _, hit := range bm25 {
		get(hit.ID).BM25 = hit.Score
	}
	for _, hit := range ann {
		get(hit.ID).ANN = hit.Score
	}

	fused := make([]fusedCandidate, 0, len(byID))
	for _, c := range byID {
		fused = append(fused, fusedCandidate{
			ID:    c.ID,
			Score: w.Alpha*c.BM25 + w.Beta*c.ANN,
			BM25:  c.BM25,
			ANN:   c.ANN,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// fusedCandidate is a single hybrid-ranked candidate awaiting hydration.
type fusedCandidate struct {
	ID    string
	Score float64
	BM25  float64
	ANN   float64
}
