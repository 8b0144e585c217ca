// Package ingest implements the ingestion pipeline: MIME and size gates,
// text extraction dispatch, chunking, intra-call deduplication and
// storage fan-out through internal/store's Manager facade.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/localdex/hybridsearch/internal/apperr"
	"github.com/localdex/hybridsearch/internal/chunk"
	"github.com/localdex/hybridsearch/internal/embed"
	"github.com/localdex/hybridsearch/internal/store"
)

// Handler extracts plain text from a file at path. It is the capability
// spec.md §9 calls "the FileHandler role" — a tagged dispatch map keyed by
// full MIME type, no inheritance hierarchy required.
type Handler interface {
	ExtractText(path string) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(path string) (string, error)

func (f HandlerFunc) ExtractText(path string) (string, error) { return f(path) }

// Result is the outcome of one ingest_path/ingest_text call.
type Result struct {
	DocID   string
	Chunks  int
	Skipped int
	TookMs  int64
}

// Storage is the subset of the storage manager the pipeline depends on.
type Storage interface {
	SaveDocument(ctx context.Context, doc store.Document) error
	UpsertChunk(ctx context.Context, chunk store.Chunk) error
}

// Config tunes gates and segmentation. Zero values fall back to spec.md §6
// defaults via Pipeline's constructor.
type Config struct {
	MaxFileMB         int
	AllowedMimeGroups []string
	ChunkSize         int
	Overlap           int
}

// Pipeline is the ingest_path/ingest_text entry point.
type Pipeline struct {
	storage  Storage
	embedder embed.Embedder
	chunker  *chunk.Chunker
	handlers map[string]Handler
	classify MimeClassifier
	cfg      Config
}

// New builds a Pipeline. handlers maps full MIME type ("text/plain",
// "text/markdown", "application/pdf") to its extractor; absence of a
// handler for a classified MIME type is an error at dispatch time, not
// construction time, matching spec.md §4.2's gate ordering.
func New(storage Storage, embedder embed.Embedder, cfg Config, handlers map[string]Handler) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = 120
	}
	if cfg.MaxFileMB <= 0 {
		cfg.MaxFileMB = 500
	}
	if len(cfg.AllowedMimeGroups) == 0 {
		cfg.AllowedMimeGroups = []string{"pdf", "text"}
	}
	return &Pipeline{
		storage:  storage,
		embedder: embedder,
		chunker:  chunk.New(chunk.WithSize(cfg.ChunkSize), chunk.WithOverlap(cfg.Overlap)),
		handlers: handlers,
		classify: ClassifyByExtension,
		cfg:      cfg,
	}
}

// IngestPath ingests a single file: MIME gate, size gate, handler dispatch,
// chunk, dedup, storage fan-out.
func (p *Pipeline) IngestPath(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	mime, err := p.gateMime(path)
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, apperr.NewBadRequest("ingest: stat %s: %v", path, err)
	}
	if err := p.gateSize(info.Size()); err != nil {
		return Result{}, err
	}

	handler, ok := p.handlers[mime]
	if !ok {
		return Result{}, apperr.NewBadRequest("ingest: no handler registered for mime type %q", mime)
	}

	text, err := handler.ExtractText(path)
	if err != nil {
		return Result{}, apperr.WrapModelError(err, "ingest: extract text from %s", path)
	}

	title := filepath.Base(path)
	doc := store.Document{
		ID:         uuid.NewString(),
		Path:       path,
		Title:      title,
		Mime:       mime,
		Source:     "file",
		ModifiedAt: time.Now().UTC(),
	}

	return p.ingest(ctx, doc, text, start)
}

// IngestText ingests an in-memory string under the "text" source channel,
// skipping the MIME/size gates (there is no file to classify).
func (p *Pipeline) IngestText(ctx context.Context, text string, title string) (Result, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return Result{}, apperr.NewBadRequest("ingest: text must not be empty")
	}
	if title == "" {
		title = "Untitled"
	}

	id := uuid.NewString()
	doc := store.Document{
		ID:         id,
		Path:       "text://" + id,
		Title:      title,
		Mime:       "text/plain",
		Source:     "text",
		ModifiedAt: time.Now().UTC(),
	}

	return p.ingest(ctx, doc, text, start)
}

// ingest chunks text, deduplicates by BLAKE3 hash of trimmed text within
// this call, embeds, and upserts each unique chunk through storage.
func (p *Pipeline) ingest(ctx context.Context, doc store.Document, text string, start time.Time) (Result, error) {
	if err := p.storage.SaveDocument(ctx, doc); err != nil {
		return Result{}, apperr.WrapStorageError(err, "ingest: save document %s", doc.ID)
	}

	pieces := p.chunker.Chunk(text, doc.Title)

	seen := make(map[[32]byte]struct{}, len(pieces))
	var unique []chunkPiece
	skipped := 0
	for _, piece := range pieces {
		h := blake3.Sum256([]byte(piece.Text))
		if _, dup := seen[h]; dup {
			skipped++
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, chunkPiece{text: piece.Text, metadata: piece.Metadata})
	}

	var embeddings [][]float32
	if len(unique) > 0 && p.embedder != nil {
		texts := make([]string, len(unique))
		for i, u := range unique {
			texts[i] = u.text
		}
		var err error
		embeddings, err = p.embedder.Embed(ctx, texts)
		if err != nil {
			return Result{}, apperr.WrapModelError(err, "ingest: embed %d chunks", len(unique))
		}
	}

	for i, u := range unique {
		c := store.Chunk{
			ID:        uuid.NewString(),
			DocID:     doc.ID,
			Text:      u.text,
			Metadata:  u.metadata,
			CreatedAt: time.Now().UTC(),
		}
		if i < len(embeddings) {
			c.Embedding = embeddings[i]
		}
		if err := p.storage.UpsertChunk(ctx, c); err != nil {
			return Result{}, apperr.WrapStorageError(err, "ingest: upsert chunk %s", c.ID)
		}
	}

	return Result{
		DocID:   doc.ID,
		Chunks:  len(unique),
		Skipped: skipped,
		TookMs:  time.Since(start).Milliseconds(),
	}, nil
}

type chunkPiece struct {
	text     string
	metadata map[string]any
}

func (p *Pipeline) gateMime(path string) (string, error) {
	mime := p.classify(path)
	if mime == "" {
		return "", apperr.NewBadRequest("ingest: could not classify mime type for %s", path)
	}
	group := mime
	if idx := strings.IndexByte(mime, '/'); idx >= 0 {
		group = mime[:idx]
	}
	for _, allowed := range p.cfg.AllowedMimeGroups {
		if group == allowed {
			return mime, nil
		}
	}
	return "", apperr.NewBadRequest("ingest: mime group %q not allowed (allowed: %v)", group, p.cfg.AllowedMimeGroups)
}

func (p *Pipeline) gateSize(sizeBytes int64) error {
	maxBytes := int64(p.cfg.MaxFileMB) * 1024 * 1024
	if sizeBytes > maxBytes {
		return apperr.NewBadRequest("ingest: file size %d exceeds max_file_mb=%d", sizeBytes, p.cfg.MaxFileMB)
	}
	return nil
}
