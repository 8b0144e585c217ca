// Package search implements the hybrid retrieval pipeline: parallel
// BM25 + ANN retrieval, weighted fusion, hydration, cross-encoder
// reranking, snippet synthesis and reasoning-trace emission.
package search

import "time"

// Request is a free-text query with optional filters, matching spec.md
// §6's QueryRequest wire schema.
type Request struct {
	Query    string
	K        int
	DateFrom *time.Time
	DateTo   *time.Time
	Filters  Filters
}

// Filters narrows the candidate pool by document metadata.
type Filters struct {
	Sources    []string
	MimeGroups []string
	People     []string
}

// Hit is a single ranked, snippet-annotated search result.
type Hit struct {
	ChunkID   string
	DocID     string
	Title     string
	Snippet   string
	Score     float32
	Metadata  map[string]any
	CreatedAt time.Time
}

// Stage is one named step of the reasoning trace, carrying its elapsed
// wall-clock time and (for debugging) a partial view of the candidate set
// at that point in the pipeline.
type Stage struct {
	Name        string
	ElapsedMs   int64
	PartialHits []Hit
}

// Response is the full result of a hybrid query: ranked hits, the
// per-stage reasoning trace, and total elapsed time.
type Response struct {
	Hits     []Hit
	Stages   []Stage
	TookMs   int64
}
