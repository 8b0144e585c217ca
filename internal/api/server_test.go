package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localdex/hybridsearch/internal/ingest"
	"github.com/localdex/hybridsearch/internal/search"
	"github.com/localdex/hybridsearch/internal/store"
)

type fakeRetriever struct {
	resp search.Response
	err  error
}

func (f *fakeRetriever) Search(ctx context.Context, req search.Request) (search.Response, error) {
	return f.resp, f.err
}

type fakeIngestStorage struct{}

func (fakeIngestStorage) SaveDocument(ctx context.Context, doc store.Document) error { return nil }
func (fakeIngestStorage) UpsertChunk(ctx context.Context, c store.Chunk) error       { return nil }

func newTestServer(t *testing.T) (*Server, *fakeRetriever) {
	t.Helper()
	dir := t.TempDir()
	rec, err := store.OpenRecordStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	inv, err := store.OpenInvertedIndex(dir)
	require.NoError(t, err)
	t.Cleanup(func() { inv.Close() })

	vec, err := store.OpenVectorIndex(dir, 384)
	require.NoError(t, err)
	t.Cleanup(func() { vec.Close() })

	manager := store.NewManager(rec, inv, vec)

	retriever := &fakeRetriever{}
	pipeline := ingest.New(fakeIngestStorage{}, nil, ingest.Config{}, ingest.DefaultHandlers())

	return New(retriever, pipeline, manager, nil), retriever
}

func TestHandleQuery_EmptyQueryIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":""}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQuery_Success(t *testing.T) {
	s, retriever := newTestServer(t)
	retriever.resp = search.Response{
		Hits: []search.Hit{{ChunkID: "c1", DocID: "d1", Title: "T", Snippet: "snip", Score: 0.9, CreatedAt: time.Now()}},
		Stages: []search.Stage{
			{Name: "bm25_topN"}, {Name: "ann_topN"}, {Name: "hybrid_union"}, {Name: "rerank_topK"},
		},
		TookMs: 5,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"hello"}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "c1", resp.Hits[0].ChunkID)
	require.Len(t, resp.Reasoning.Stages, 4)
	assert.Equal(t, "bm25_topN", resp.Reasoning.Stages[0].Stage)
}

func TestHandleIngestText(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"text":"Hello world. This is a document.","title":"My Title"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/text", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var res ingestResultJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Chunks)
}

func TestHandleIngestFile_MimeRejected(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "picture.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not really png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not allowed")
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, Version, status.Version)
}
