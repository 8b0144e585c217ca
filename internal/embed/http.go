package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaDefaultHost is the default local Ollama API endpoint.
const OllamaDefaultHost = "http://localhost:11434"

// OllamaConfig configures the HTTP embedder/reranker pair.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int           // 0 = auto-detect from the first response
	Timeout    time.Duration // per-request timeout, default 30s
	MaxRetries int           // default 3
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.Host == "" {
		c.Host = OllamaDefaultHost
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// OllamaEmbedder calls a locally running Ollama-compatible /api/embed
// endpoint. Grounded on the teacher's internal/embed/ollama.go, trimmed of
// its progressive-timeout thermal management (tuned for the teacher's
// long-running indexing jobs, not applicable here) down to the request/
// retry/dimension-detection core.
type OllamaEmbedder struct {
	client *http.Client
	cfg    OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder builds an embedder against cfg.Host. Dimensions are
// auto-detected from the first real embedding call if cfg.Dimensions is 0.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	cfg = cfg.withDefaults()
	return &OllamaEmbedder{
		client: &http.Client{},
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed requests embeddings for texts, retrying transient failures with
// exponential backoff.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("ollama embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		embeddings, err := e.doEmbed(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("ollama embed failed after %d attempts: %w", e.cfg.MaxRetries, lastErr)
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, strings.TrimRight(e.cfg.Host, "/")+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode ollama embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		row := make([]float32, len(emb))
		for j, v := range emb {
			row[j] = float32(v)
		}
		out[i] = row
	}

	e.mu.Lock()
	if e.dims == 0 && len(out) > 0 {
		e.dims = len(out[0])
	}
	e.mu.Unlock()

	return out, nil
}

// Dimensions returns the detected (or configured) embedding width.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the configured model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.cfg.Model }

// Available reports whether the Ollama host answers /api/tags.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(e.cfg.Host, "/")+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases the embedder's idle HTTP connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}

// OllamaReranker scores (query, document) pairs. Ollama has no standardized
// cross-encoder rerank endpoint, so this reranker reuses the embedder's
// vector space: it embeds the query and each candidate, then scores by
// cosine similarity passed through a sigmoid, matching StaticReranker's
// contract so the two backends are interchangeable.
type OllamaReranker struct {
	embedder *OllamaEmbedder
}

var _ Reranker = (*OllamaReranker)(nil)

// NewOllamaReranker builds a reranker backed by an existing OllamaEmbedder.
func NewOllamaReranker(embedder *OllamaEmbedder) *OllamaReranker {
	return &OllamaReranker{embedder: embedder}
}

// Rerank scores each pair against query using embedding cosine similarity.
func (r *OllamaReranker) Rerank(ctx context.Context, query string, pairs []Pair) ([]float32, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(pairs)+1)
	texts = append(texts, query)
	for _, p := range pairs {
		texts = append(texts, query+" [SEP] "+p.Title+" [SEP] "+p.Body)
	}

	embeddings, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed rerank pairs: %w", err)
	}

	queryVec := embeddings[0]
	scores := make([]float32, len(pairs))
	for i, vec := range embeddings[1:] {
		scores[i] = sigmoid(cosineSimilarity(queryVec, vec) * 10)
	}
	return scores, nil
}

// cosineSimilarity computes cosine similarity for two arbitrary-length
// vectors; unlike dot() in static.go it does not assume pre-normalized
// inputs, since Ollama embeddings arrive unnormalized.
func cosineSimilarity(a, b []float32) float64 {
	var dotP, normA, normB float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dotP += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotP / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Available reports whether the underlying embedder's host is reachable.
func (r *OllamaReranker) Available(ctx context.Context) bool { return r.embedder.Available(ctx) }

// Close releases the underlying embedder's resources.
func (r *OllamaReranker) Close() error { return r.embedder.Close() }
