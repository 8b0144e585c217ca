// Package embed defines the external embedding/reranking contract and two
// implementations: an HTTP client for a locally running Ollama-style server,
// and a deterministic hash-pooled fallback that needs no model weights.
package embed

import "context"

// Embedder turns text into dense vectors for the ANN index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// Reranker scores (query, document) pairs for the final reranking stage.
type Reranker interface {
	Rerank(ctx context.Context, query string, pairs []Pair) ([]float32, error)
	Available(ctx context.Context) bool
	Close() error
}

// Pair is a single candidate document passed to Rerank, formatted as
// "{query} [SEP] {title} [SEP] {body}" internally, matching the original
// reference reranker's template.
type Pair struct {
	Title string
	Body  string
}
