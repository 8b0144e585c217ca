package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Manager is the storage facade the ingest pipeline and retriever talk to.
// It fans out a single UpsertChunk call to the record store, inverted index
// and vector index in that strict order, best-effort with no cross-store
// rollback — matching original_source's StorageManager.upsert_chunk and the
// teacher's HybridIndexer composite style.
type Manager struct {
	mu       sync.Mutex
	records  RecordStore
	inverted InvertedIndex
	vector   VectorIndex
}

// NewManager composes the three backing stores into a single facade.
func NewManager(records RecordStore, inverted InvertedIndex, vector VectorIndex) *Manager {
	return &Manager{records: records, inverted: inverted, vector: vector}
}

// SaveDocument persists a document's metadata ahead of its chunks.
func (m *Manager) SaveDocument(ctx context.Context, doc Document) error {
	if err := m.records.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("manager: save document: %w", err)
	}
	return nil
}

// UpsertChunk writes chunk to the record store, then the inverted index,
// then — only if an embedding is present — the vector index. Each step is
// attempted even if an earlier one fails; upsert is idempotent by ID so a
// retried ingest converges the three stores back into agreement.
func (m *Manager) UpsertChunk(ctx context.Context, chunk Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error

	if err := m.records.UpsertChunk(ctx, chunk); err != nil {
		errs = append(errs, fmt.Errorf("record store: %w", err))
	}

	if err := m.inverted.Index(ctx, []Chunk{chunk}); err != nil {
		errs = append(errs, fmt.Errorf("inverted index: %w", err))
	}

	if len(chunk.Embedding) > 0 {
		if err := m.vector.Add(ctx, chunk.ID, chunk.Embedding); err != nil {
			errs = append(errs, fmt.Errorf("vector index: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("manager: upsert chunk %s: %w", chunk.ID, errors.Join(errs...))
	}
	return nil
}

// DeleteDocument removes a document's chunks from all three stores,
// best-effort.
func (m *Manager) DeleteDocument(ctx context.Context, docID string, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if err := m.records.DeleteChunksByDocID(ctx, docID); err != nil {
		errs = append(errs, fmt.Errorf("record store: %w", err))
	}
	if err := m.inverted.Delete(ctx, chunkIDs); err != nil {
		errs = append(errs, fmt.Errorf("inverted index: %w", err))
	}
	for _, id := range chunkIDs {
		if err := m.vector.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("vector index %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("manager: delete document %s: %w", docID, errors.Join(errs...))
	}
	return nil
}

// GetChunksByIDs hydrates chunk IDs (as returned by BM25/ANN search) back
// into full Chunk records.
func (m *Manager) GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	return m.records.GetChunksByIDs(ctx, ids)
}

// GetDocument fetches a document's metadata by ID.
func (m *Manager) GetDocument(ctx context.Context, id string) (Document, error) {
	return m.records.GetDocument(ctx, id)
}

// ListRecentDocuments returns the most recently ingested documents.
func (m *Manager) ListRecentDocuments(ctx context.Context, limit int) ([]Document, error) {
	return m.records.ListRecentDocuments(ctx, limit)
}

// SearchBM25 queries the inverted index directly.
func (m *Manager) SearchBM25(ctx context.Context, query string, limit int) ([]ScoredID, error) {
	return m.inverted.Search(ctx, query, limit)
}

// SearchANN queries the vector index directly.
func (m *Manager) SearchANN(ctx context.Context, vector []float32, limit int) ([]ScoredID, error) {
	return m.vector.Search(ctx, vector, limit)
}

// Stats returns the record store's document and chunk counts; the inverted
// and vector indices are not consulted.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	recordStats, err := m.records.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("manager: record store stats: %w", err)
	}
	return recordStats, nil
}

// Close shuts down all three backing stores, accumulating any errors.
func (m *Manager) Close() error {
	var errs []error
	if err := m.records.Close(); err != nil {
		errs = append(errs, fmt.Errorf("record store: %w", err))
	}
	if err := m.inverted.Close(); err != nil {
		errs = append(errs, fmt.Errorf("inverted index: %w", err))
	}
	if err := m.vector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("vector index: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
