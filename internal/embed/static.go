package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// StaticDimensions is the vector width of StaticEmbedder, matching the
// reference implementation's 384-dim sentence embedding model so the two
// backends are interchangeable without a config change elsewhere.
const StaticDimensions = 384

const padTokenID = 0

// StaticEmbedder is a deterministic, weight-free embedder: it tokenizes on
// whitespace, hashes each token into a fixed-size bucket vocabulary (a
// stand-in for a real subword tokenizer), pads each batch to the longest
// sequence with an explicit attention mask, then mean-pools the embedding
// table rows selected by the mask. This is the exact tokenize -> pad ->
// attention-mask -> pool pipeline the embedding contract describes; it just
// substitutes a hash lookup for a trained embedding table. Grounded on the
// teacher's static768.go hash-bucket approach, generalized to 384 dims to
// match the reference model.
type StaticEmbedder struct {
	dim       int
	vocabSize int
}

// NewStaticEmbedder builds a deterministic embedder requiring no model
// weights or network access — the offline path exercised by tests and by
// `hybridsearch ingest`/`hybridsearch query` when embeddings.provider is
// "static".
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dim: StaticDimensions, vocabSize: 1 << 16}
}

func (e *StaticEmbedder) Dimensions() int   { return e.dim }
func (e *StaticEmbedder) ModelName() string { return "static-hash-pool-384" }
func (e *StaticEmbedder) Available(ctx context.Context) bool { return true }
func (e *StaticEmbedder) Close() error                        { return nil }

func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tokenized := make([][]int, len(texts))
	maxLen := 0
	for i, text := range texts {
		toks := tokenize(text)
		tokenized[i] = toks
		if len(toks) > maxLen {
			maxLen = len(toks)
		}
	}
	if maxLen == 0 {
		maxLen = 1
	}

	inputIDs, attentionMask := padSequences(tokenized, maxLen, padTokenID)

	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.meanPool(inputIDs[i], attentionMask[i])
	}
	return out, nil
}

// meanPool averages the per-token embedding-table rows selected by mask,
// then L2-normalizes — the same pooling strategy the spec's embedding
// contract names explicitly.
func (e *StaticEmbedder) meanPool(inputIDs []int, mask []int) []float32 {
	sum := make([]float64, e.dim)
	count := 0
	for i, id := range inputIDs {
		if mask[i] == 0 {
			continue
		}
		row := e.tokenRow(id)
		for d := 0; d < e.dim; d++ {
			sum[d] += row[d]
		}
		count++
	}
	if count == 0 {
		count = 1
	}

	vec := make([]float32, e.dim)
	var normSq float64
	for d := 0; d < e.dim; d++ {
		v := sum[d] / float64(count)
		vec[d] = float32(v)
		normSq += v * v
	}
	norm := math.Sqrt(normSq)
	if norm == 0 {
		return vec
	}
	for d := range vec {
		vec[d] = float32(float64(vec[d]) / norm)
	}
	return vec
}

// tokenRow derives a deterministic pseudo-embedding-table row for a token
// ID by hashing (id, dimension) pairs into [-1, 1] floats.
func (e *StaticEmbedder) tokenRow(id int) []float64 {
	row := make([]float64, e.dim)
	for d := 0; d < e.dim; d++ {
		h := fnv.New32a()
		h.Write([]byte{byte(id), byte(id >> 8), byte(d), byte(d >> 8)})
		v := float64(h.Sum32()%2000)/1000.0 - 1.0
		row[d] = v
	}
	return row
}

func tokenize(text string) []int {
	fields := strings.Fields(strings.ToLower(text))
	toks := make([]int, 0, len(fields))
	for _, f := range fields {
		toks = append(toks, hashToken(f))
	}
	return toks
}

func hashToken(tok string) int {
	h := fnv.New32a()
	h.Write([]byte(tok))
	id := int(h.Sum32() % (1<<16 - 1))
	if id == padTokenID {
		id++
	}
	return id
}

// padSequences right-pads every sequence to width with padID, returning the
// padded input IDs alongside a 1/0 attention mask marking real tokens.
func padSequences(seqs [][]int, width, padID int) (ids [][]int, mask [][]int) {
	ids = make([][]int, len(seqs))
	mask = make([][]int, len(seqs))
	for i, seq := range seqs {
		row := make([]int, width)
		maskRow := make([]int, width)
		for j := 0; j < width; j++ {
			if j < len(seq) {
				row[j] = seq[j]
				maskRow[j] = 1
			} else {
				row[j] = padID
				maskRow[j] = 0
			}
		}
		ids[i] = row
		mask[i] = maskRow
	}
	return ids, mask
}

var _ Embedder = (*StaticEmbedder)(nil)

// StaticReranker scores query/document pairs with the same hash-pooled
// embedding table as StaticEmbedder, then a sigmoid'd cosine similarity in
// place of a trained cross-encoder's logit — the deterministic offline
// fallback for the reranking stage.
type StaticReranker struct {
	embedder *StaticEmbedder
}

func NewStaticReranker() *StaticReranker {
	return &StaticReranker{embedder: NewStaticEmbedder()}
}

func (r *StaticReranker) Available(ctx context.Context) bool { return true }
func (r *StaticReranker) Close() error                        { return nil }

// Rerank formats each pair as "{query} [SEP] {title} [SEP] {body}" (the
// reference cross-encoder's template), embeds query and formatted pair, and
// returns a sigmoid of their cosine similarity as the relevance score.
func (r *StaticReranker) Rerank(ctx context.Context, query string, pairs []Pair) ([]float32, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(pairs)+1)
	texts = append(texts, query)
	for _, p := range pairs {
		texts = append(texts, query+" [SEP] "+p.Title+" [SEP] "+p.Body)
	}

	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	queryVec := vecs[0]
	scores := make([]float32, len(pairs))
	for i, v := range vecs[1:] {
		cos := dot(queryVec, v)
		scores[i] = sigmoid(cos * 10) // scale so the cosine range spreads across the sigmoid
	}
	return scores, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		if i >= len(b) {
			break
		}
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func sigmoid(x float64) float32 {
	return float32(1.0 / (1.0 + math.Exp(-x)))
}

var _ Reranker = (*StaticReranker)(nil)
