package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Vector index tuning constants, matching spec.md §4.5 and the reference
// implementation's hnsw_rs::Hnsw::new(16, 16, dim, 100, 50).
const (
	DefaultM             = 16
	DefaultEfConstruction = 100
	DefaultEfSearch       = 50
)

// hnswMetadata is the gob-encoded sidecar persisted next to the exported
// graph, carrying the bidirectional ID maps the graph itself doesn't know
// about (coder/hnsw keys nodes by uint64, not by our string chunk IDs).
type hnswMetadata struct {
	IDMap   map[string]uint64
	KeyMap  map[uint64]string
	NextKey uint64
	Dim     int
}

// HNSWVectorIndex is the ANN index over chunk embeddings, backed by
// coder/hnsw. Deletion is lazy: a re-Add orphans the old key rather than
// calling graph.Delete, following the teacher's hnsw.go workaround for a
// known coder/hnsw bug around delete-then-reinsert.
type HNSWVectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dim     int
	path    string
}

// OpenVectorIndex opens or initializes the HNSW graph rooted at
// <dataDir>/hnsw. dim is the expected embedding dimension.
func OpenVectorIndex(dataDir string, dim int) (*HNSWVectorIndex, error) {
	path := filepath.Join(dataDir, "hnsw")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("vector index: create dir: %w", err)
	}

	v := &HNSWVectorIndex{
		graph:  newGraph(),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dim:    dim,
		path:   path,
	}

	if _, err := os.Stat(filepath.Join(path, "graph.bin")); err == nil {
		if err := v.Load(); err != nil {
			return nil, fmt.Errorf("vector index: load existing graph: %w", err)
		}
	}

	return v, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = DefaultM
	g.EfSearch = DefaultEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

func (v *HNSWVectorIndex) Add(ctx context.Context, id string, vector []float32) error {
	if v.dim > 0 && len(vector) != v.dim {
		return ErrDimensionMismatch
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Lazy delete: if id already has a key, leave the stale node in the
	// graph (orphaned, unreachable via idMap and keyMap) and mint a fresh key. A real
	// graph.Delete interacts badly with coder/hnsw's neighbor rebalancing
	// under rapid re-insertion, so we avoid it on the update path.
	if old, ok := v.idMap[id]; ok {
		delete(v.keyMap, old)
	}
	key := v.nextKey
	v.nextKey++

	v.graph.Add(hnsw.MakeNode(key, vector))
	v.idMap[id] = key
	v.keyMap[key] = id
	return nil
}

func (v *HNSWVectorIndex) Delete(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, ok := v.idMap[id]
	if !ok {
		return nil
	}
	delete(v.idMap, id)
	delete(v.keyMap, key)
	// The node itself is left in the graph as an orphan; Search filters it
	// out via the keyMap lookup below, the same lazy-delete trade-off Add
	// makes on update.
	return nil
}

func (v *HNSWVectorIndex) Search(ctx context.Context, vector []float32, limit int) ([]ScoredID, error) {
	if v.dim > 0 && len(vector) != v.dim {
		return nil, ErrDimensionMismatch
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	// Over-fetch to absorb orphaned (deleted) nodes the graph still holds.
	neighbors := v.graph.Search(vector, limit*3+10)

	hits := make([]ScoredID, 0, limit)
	for _, n := range neighbors {
		id, ok := v.keyMap[n.Key]
		if !ok {
			continue // orphaned/deleted node
		}
		hits = append(hits, ScoredID{
			ID:    id,
			Score: distanceToScore(euclideanDistance(vector, n.Value), v.dim),
		})
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

func (v *HNSWVectorIndex) Save() error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	graphPath := filepath.Join(v.path, "graph.bin")
	f, err := os.Create(graphPath)
	if err != nil {
		return fmt.Errorf("vector index: create graph file: %w", err)
	}
	defer f.Close()

	if err := hnsw.Export(v.graph, f); err != nil {
		return fmt.Errorf("vector index: export graph: %w", err)
	}

	metaPath := filepath.Join(v.path, "graph.meta")
	mf, err := os.Create(metaPath)
	if err != nil {
		return fmt.Errorf("vector index: create meta file: %w", err)
	}
	defer mf.Close()

	meta := hnswMetadata{IDMap: v.idMap, KeyMap: v.keyMap, NextKey: v.nextKey, Dim: v.dim}
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		return fmt.Errorf("vector index: encode metadata: %w", err)
	}
	return nil
}

func (v *HNSWVectorIndex) Load() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	graphPath := filepath.Join(v.path, "graph.bin")
	f, err := os.Open(graphPath)
	if err != nil {
		return fmt.Errorf("vector index: open graph file: %w", err)
	}
	defer f.Close()

	graph := newGraph()
	if err := hnsw.Import(f, graph); err != nil {
		return fmt.Errorf("vector index: import graph: %w", err)
	}

	metaPath := filepath.Join(v.path, "graph.meta")
	mf, err := os.Open(metaPath)
	if err != nil {
		return fmt.Errorf("vector index: open meta file: %w", err)
	}
	defer mf.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return fmt.Errorf("vector index: decode metadata: %w", err)
	}

	v.graph = graph
	v.idMap = meta.IDMap
	v.keyMap = meta.KeyMap
	v.nextKey = meta.NextKey
	if meta.Dim > 0 {
		v.dim = meta.Dim
	}
	return nil
}

func (v *HNSWVectorIndex) Stats(ctx context.Context) (Stats, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Stats{DocumentCount: len(v.idMap)}, nil
}

func (v *HNSWVectorIndex) Close() error {
	return v.Save()
}

func euclideanDistance(a, b []float32) float64 {
	var sumSq float64
	for i := range a {
		if i >= len(b) {
			break
		}
		d := float64(a[i]) - float64(b[i])
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

// distanceToScore converts a raw Euclidean distance into a 0..1 similarity,
// normalizing against the embedding dimension per spec.md §4.5:
// s = 1 - min(d/D, 1). Dividing by D keeps scores comparable across
// embedding families with different dimensionality.
func distanceToScore(d float64, dim int) float64 {
	if dim <= 0 {
		dim = 1
	}
	s := 1 - math.Min(d/float64(dim), 1)
	if s < 0 {
		return 0
	}
	return s
}

var _ VectorIndex = (*HNSWVectorIndex)(nil)
