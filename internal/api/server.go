// Package api implements the HTTP surface spec.md §6 describes: JSON
// endpoints for query/ingest/status plus a server-sent-event progress
// stream. The HTTP layer is ambient glue per spec.md §1 — thin handlers
// delegating to internal/search and internal/ingest — but it is real,
// wired code, grounded on the teacher pack's chi-based server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/localdex/hybridsearch/internal/apperr"
	"github.com/localdex/hybridsearch/internal/ingest"
	"github.com/localdex/hybridsearch/internal/search"
	"github.com/localdex/hybridsearch/internal/store"
)

// Version is the API's reported version string.
const Version = "0.1.0"

// Retriever is the subset of search.Retriever the server depends on.
type Retriever interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// Server wires HTTP handlers to the retriever, ingest pipeline and
// storage manager.
type Server struct {
	router    chi.Router
	retriever Retriever
	ingest    *ingest.Pipeline
	manager   *store.Manager
	progress  *Broadcaster
	start     time.Time
}

// New constructs the chi router with CORS and the standard middleware
// stack (RequestID, RealIP, Logger, Recoverer), matching the teacher's
// server.go wiring, then registers spec.md §6's route table.
func New(retriever Retriever, pipeline *ingest.Pipeline, manager *store.Manager, corsOrigins []string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:    r,
		retriever: retriever,
		ingest:    pipeline,
		manager:   manager,
		progress:  NewBroadcaster(),
		start:     time.Now(),
	}

	r.Post("/api/query", s.handleQuery)
	r.Post("/api/ingest/file", s.handleIngestFile)
	r.Post("/api/ingest/text", s.handleIngestText)
	r.Get("/api/status", s.handleStatus)
	r.Get("/ws/progress", s.handleProgress)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

type queryRequest struct {
	Query    string   `json:"query"`
	K        uint32   `json:"k"`
	DateFrom *string  `json:"dateFrom,omitempty"`
	DateTo   *string  `json:"dateTo,omitempty"`
	Filters  *filters `json:"filters,omitempty"`
	Stream   bool     `json:"stream"`
}

type filters struct {
	Sources    []string `json:"sources,omitempty"`
	MimeGroups []string `json:"mimeGroups,omitempty"`
	People     []string `json:"people,omitempty"`
}

type searchHitJSON struct {
	ChunkID   string `json:"chunkId"`
	DocID     string `json:"docId"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Score     float32 `json:"score"`
	Metadata  any    `json:"metadata"`
	CreatedAt string `json:"createdAt"`
}

type reasoningStageJSON struct {
	Stage       string          `json:"stage"`
	PartialHits []searchHitJSON `json:"partialHits"`
	ElapsedMs   int64           `json:"elapsedMs"`
}

type queryResponse struct {
	Hits      []searchHitJSON `json:"hits"`
	Reasoning struct {
		Stages []reasoningStageJSON `json:"stages"`
	} `json:"reasoning"`
	TookMs int64 `json:"tookMs"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.NewValidation("decode query request: %v", err))
		return
	}
	if req.Query == "" {
		writeAppError(w, apperr.NewBadRequest("query must not be empty"))
		return
	}
	if req.K == 0 {
		req.K = 10
	}

	sreq := search.Request{Query: req.Query, K: int(req.K)}
	if req.Filters != nil {
		sreq.Filters = search.Filters{
			Sources:    req.Filters.Sources,
			MimeGroups: req.Filters.MimeGroups,
			People:     req.Filters.People,
		}
	}

	resp, err := s.retriever.Search(r.Context(), sreq)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toQueryResponse(resp))
}

func toQueryResponse(resp search.Response) queryResponse {
	out := queryResponse{TookMs: resp.TookMs}
	out.Hits = make([]searchHitJSON, len(resp.Hits))
	for i, h := range resp.Hits {
		out.Hits[i] = toHitJSON(h)
	}
	out.Reasoning.Stages = make([]reasoningStageJSON, len(resp.Stages))
	for i, st := range resp.Stages {
		partial := make([]searchHitJSON, len(st.PartialHits))
		for j, h := range st.PartialHits {
			partial[j] = toHitJSON(h)
		}
		out.Reasoning.Stages[i] = reasoningStageJSON{Stage: st.Name, PartialHits: partial, ElapsedMs: st.ElapsedMs}
	}
	return out
}

func toHitJSON(h search.Hit) searchHitJSON {
	return searchHitJSON{
		ChunkID:   h.ChunkID,
		DocID:     h.DocID,
		Title:     h.Title,
		Snippet:   h.Snippet,
		Score:     h.Score,
		Metadata:  h.Metadata,
		CreatedAt: h.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type ingestResultJSON struct {
	DocID   string `json:"docId"`
	Chunks  int    `json:"chunks"`
	Skipped int    `json:"skipped"`
	TookMs  int64  `json:"tookMs"`
}

func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeAppError(w, apperr.NewBadRequest("parse multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, apperr.NewBadRequest("missing file field: %v", err))
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeAppError(w, apperr.NewBadRequest("missing filename"))
		return
	}

	tmpPath, cleanup, err := spoolToTemp(file, header.Filename)
	if err != nil {
		writeAppError(w, apperr.WrapInternal(err, "spool upload"))
		return
	}
	defer cleanup()

	s.progress.Publish(fmt.Sprintf("ingesting %s", header.Filename))
	res, err := s.ingest.IngestPath(r.Context(), tmpPath)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.progress.Publish(fmt.Sprintf("ingested %s: %d chunks", header.Filename, res.Chunks))

	writeJSON(w, http.StatusOK, ingestResultJSON{DocID: res.DocID, Chunks: res.Chunks, Skipped: res.Skipped, TookMs: res.TookMs})
}

type ingestTextRequest struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.NewValidation("decode ingest text request: %v", err))
		return
	}

	s.progress.Publish("ingesting text")
	res, err := s.ingest.IngestText(r.Context(), req.Text, req.Title)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.progress.Publish(fmt.Sprintf("ingested text: %d chunks", res.Chunks))

	writeJSON(w, http.StatusOK, ingestResultJSON{DocID: res.DocID, Chunks: res.Chunks, Skipped: res.Skipped, TookMs: res.TookMs})
}

type statusResponse struct {
	Version   string `json:"version"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	UptimeSec int64  `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Version:   Version,
		Documents: stats.DocumentCount,
		Chunks:    stats.ChunkCount,
		UptimeSec: int64(time.Since(s.start).Seconds()),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAppError(w, apperr.WrapInternal(errors.New("no flusher"), "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.progress.Subscribe()
	defer s.progress.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAppError(w http.ResponseWriter, err error) {
	status := statusForKind(apperr.KindOf(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.BadRequest, apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.ModelError, apperr.StorageError, apperr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
