package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryKeyStore struct {
	seen map[string]bool
}

func (s *memoryKeyStore) CheckAndInsert(ctx context.Context, key string) error {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return ErrDuplicateIngest
	}
	s.seen[key] = true
	return nil
}

func (s *memoryKeyStore) Delete(ctx context.Context, key string) error {
	delete(s.seen, key)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, svc, &memoryKeyStore{}), repo
}

func mountTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

const ingestBody = `{
	"fileName": "stock.xlsx",
	"rows": [
		{
			"item": "SKU-100",
			"warehouse": "WH-A",
			"itemGroup": "Beverages",
			"category": "FINISHED_GOODS",
			"cbmPerUnit": 0.5,
			"readings": [{"date": "2026-03-01", "quantity": 10}]
		}
	]
}`

func TestHandleIngestCreatesBatch(t *testing.T) {
	handler, repo := newTestHandler(t)
	router := mountTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(ingestBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"batchId"`)
	require.Len(t, repo.batches, 1)
}

func TestHandleIngestDuplicateKeyConflicts(t *testing.T) {
	handler, repo := newTestHandler(t)
	router := mountTestRouter(handler)

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(ingestBody))
		req.Header.Set("Idempotency-Key", "upload-42")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
	require.Len(t, repo.batches, 1)
}

func TestHandleIngestFailureReleasesKey(t *testing.T) {
	handler, repo := newTestHandler(t)
	router := mountTestRouter(handler)

	repo.appendErr = errors.New("disk full")
	req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(ingestBody))
	req.Header.Set("Idempotency-Key", "upload-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Storage recovers; the retry with the same key must go through.
	repo.appendErr = nil
	req = httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(ingestBody))
	req.Header.Set("Idempotency-Key", "upload-7")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleIngestRejectsBadRows(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := mountTestRouter(handler)

	for _, body := range []string{
		`not json`,
		`{"fileName": "stock.xlsx", "rows": []}`,
		`{"fileName": "stock.xlsx", "rows": [{"item": "A", "warehouse": "W", "category": "SNACKS"}]}`,
		`{"fileName": "stock.xlsx", "rows": [{"item": "A", "warehouse": "W", "category": "OTHER", "readings": [{"date": "03/01/2026"}]}]}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestHandleListReturnsPagination(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := mountTestRouter(handler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(ingestBody))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/batches?page=2&perPage=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"total":3`)
	require.Contains(t, body, `"totalPages":2`)
	require.Contains(t, body, `"page":2`)

	req = httptest.NewRequest(http.MethodGet, "/batches?page=zero", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleDeleteBatch(t *testing.T) {
	handler, repo := newTestHandler(t)
	router := mountTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/batches", strings.NewReader(ingestBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var id uuid.UUID
	for batchID := range repo.batches {
		id = batchID
	}

	req = httptest.NewRequest(http.MethodDelete, "/batches/"+id.String(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/batches/"+id.String(), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/batches/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
