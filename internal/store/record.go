package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecordStore is the relational source of truth: documents and chunks,
// with embeddings packed as little-endian float32 blobs. WAL mode and the
// pragma tuning below follow the teacher's sqlite_bm25.go setup.
type SQLiteRecordStore struct {
	db *sql.DB
}

// OpenRecordStore opens (creating if needed) the SQLite database at
// <dataDir>/myai.db.
func OpenRecordStore(dataDir string) (*SQLiteRecordStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("record store: create data dir: %w", err)
	}

	path := filepath.Join(dataDir, "myai.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("record store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; SQLite serializes anyway

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("record store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteRecordStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRecordStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	path TEXT NOT NULL,
	mime TEXT NOT NULL,
	source TEXT NOT NULL,
	modified_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	metadata TEXT NOT NULL,
	embedding BLOB,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("record store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteRecordStore) SaveDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, path, mime, source, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, path=excluded.path,
			mime=excluded.mime, modified_at=excluded.modified_at`,
		doc.ID, doc.Title, doc.Path, doc.Mime, doc.Source, doc.ModifiedAt.Unix())
	if err != nil {
		return fmt.Errorf("record store: save document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *SQLiteRecordStore) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, path, mime, source, modified_at FROM documents WHERE id = ?`, id)

	var doc Document
	var modifiedAt int64
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Path, &doc.Mime, &doc.Source, &modifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("record store: get document %s: %w", id, err)
	}
	doc.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
	return doc, nil
}

func (s *SQLiteRecordStore) ListRecentDocuments(ctx context.Context, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, path, mime, source, modified_at FROM documents
		 ORDER BY modified_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("record store: list recent documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var modifiedAt int64
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Path, &doc.Mime, &doc.Source, &modifiedAt); err != nil {
			return nil, fmt.Errorf("record store: scan document: %w", err)
		}
		doc.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteRecordStore) UpsertChunk(ctx context.Context, chunk Chunk) error {
	metaJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("record store: marshal metadata: %w", err)
	}

	var blob []byte
	if len(chunk.Embedding) > 0 {
		blob = packFloat32(chunk.Embedding)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, doc_id, text, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, metadata=excluded.metadata,
			embedding=excluded.embedding`,
		chunk.ID, chunk.DocID, chunk.Text, string(metaJSON), blob, chunk.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("record store: upsert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (s *SQLiteRecordStore) GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT id, doc_id, text, metadata, embedding, created_at FROM chunks WHERE id IN (%s)`,
		string(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("record store: get chunks by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Chunk, len(ids))
	for rows.Next() {
		var c Chunk
		var metaJSON string
		var blob []byte
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.DocID, &c.Text, &metaJSON, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("record store: scan chunk: %w", err)
		}
		_ = json.Unmarshal([]byte(metaJSON), &c.Metadata)
		if len(blob) > 0 {
			c.Embedding = unpackFloat32(blob)
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the requested ID order; skip IDs that no longer exist
	// (best-effort coherence — a chunk orphaned in one index is not
	// guaranteed to still be present in the record store).
	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *SQLiteRecordStore) DeleteChunksByDocID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("record store: delete chunks for doc %s: %w", docID, err)
	}
	return nil
}

func (s *SQLiteRecordStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`)
	if err := row.Scan(&stats.DocumentCount); err != nil {
		return Stats{}, fmt.Errorf("record store: count documents: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`)
	if err := row.Scan(&stats.ChunkCount); err != nil {
		return Stats{}, fmt.Errorf("record store: count chunks: %w", err)
	}
	return stats, nil
}

func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}

func packFloat32(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackFloat32(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

var _ RecordStore = (*SQLiteRecordStore)(nil)
