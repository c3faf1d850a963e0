package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/api/shared"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/mocks"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"github.com/phrazzld/inkwell/internal/queue"
	"github.com/phrazzld/inkwell/internal/service"
	"github.com/phrazzld/inkwell/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contentAPI struct {
	router chi.Router
	store  *mocks.MockContentJobStore
	queue  *queue.MemoryQueue
	userID uuid.UUID
}

func newContentAPI(t *testing.T) *contentAPI {
	t.Helper()
	log, _ := logger.NewTestLogger()

	gen, err := generation.NewRouter(domain.ProviderGemini,
		map[domain.Provider]generation.Generator{domain.ProviderGemini: &mocks.MockGenerator{}}, nil)
	require.NoError(t, err)

	a := &contentAPI{
		store:  mocks.NewMockContentJobStore(),
		queue:  queue.NewMemoryQueue(queue.Options{}),
		userID: uuid.New(),
	}
	svc, err := service.NewContentService(a.store, a.queue, gen, time.Minute, log)
	require.NoError(t, err)
	h := NewContentHandler(svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(shared.WithUserID(req.Context(), uuid.MustParse(id)))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/contents", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Get("/", h.List)
		r.Get("/{id}/status", h.Status)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.UpdateMetadata)
		r.Post("/{id}/regenerate", h.Regenerate)
		r.Delete("/{id}", h.Delete)
	})
	a.router = r
	return a
}

func (a *contentAPI) do(t *testing.T, method, path, body string, user uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *contentAPI) generate(t *testing.T) service.Submission {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/contents/generate",
		`{"prompt":"Launch of product X","contentType":"ad-copy"}`, a.userID)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var sub service.Submission
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sub))
	return sub
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Error
}

func TestGenerateAccepted(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)

	rr := a.do(t, http.MethodPost, "/api/contents/generate",
		`{"prompt":"Launch of product X","contentType":"ad-copy"}`, a.userID)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var wire map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&wire))
	assert.Contains(t, wire, "jobId")
	assert.Contains(t, wire, "contentId")
	assert.Contains(t, wire, "expectedCompletion")
	assert.Equal(t, 1, a.queue.Len())
}

func TestGenerateRejectsBadInput(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"malformed json", `{"prompt":`, "Invalid request format"},
		{"unknown field", `{"prompt":"p","contentType":"ad-copy","priority":1}`, "Invalid request format"},
		{"missing prompt", `{"contentType":"ad-copy"}`, "Invalid prompt: required field"},
		{"blank prompt", `{"prompt":"   ","contentType":"ad-copy"}`, "Prompt cannot be empty"},
		{"unknown content type", `{"prompt":"p","contentType":"haiku"}`, "Invalid content type"},
		{"unknown provider", `{"prompt":"p","contentType":"ad-copy","provider":"mistral"}`, "Invalid provider: invalid value"},
		{"unconfigured provider", `{"prompt":"p","contentType":"ad-copy","provider":"openai"}`, "Requested provider is not available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, http.MethodPost, "/api/contents/generate", tt.body, a.userID)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rr))
		})
	}
	assert.Zero(t, a.queue.Len())
}

func TestContentRoutesRequireUser(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)

	rr := a.do(t, http.MethodPost, "/api/contents/generate", `{"prompt":"p","contentType":"ad-copy"}`, uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = a.do(t, http.MethodGet, "/api/contents", "", uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = a.do(t, http.MethodGet, "/api/contents/"+uuid.NewString(), "", uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)
	sub := a.generate(t)

	rr := a.do(t, http.MethodGet, "/api/contents/"+sub.JobID.String()+"/status", "", a.userID)
	require.Equal(t, http.StatusOK, rr.Code)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, sub.JobID, status.JobID)
	assert.Equal(t, sub.ContentID, status.ContentID)
	assert.Equal(t, domain.ContentStatusQueued, status.Status)

	_, err := a.store.Finalize(context.Background(), sub.JobID, store.Failed("content generation failed"))
	require.NoError(t, err)
	rr = a.do(t, http.MethodGet, "/api/contents/"+sub.JobID.String()+"/status", "", a.userID)
	var wire map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&wire))
	assert.Equal(t, "failed", wire["status"])
	assert.Equal(t, "content generation failed", wire["error"])

	rr = a.do(t, http.MethodGet, "/api/contents/"+sub.JobID.String()+"/status", "", uuid.New())
	assert.Equal(t, http.StatusNotFound, rr.Code, "other users see not found")
	assert.Equal(t, "Content not found", decodeError(t, rr))

	rr = a.do(t, http.MethodGet, "/api/contents/not-a-uuid/status", "", a.userID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid ID", decodeError(t, rr))
}

func TestListEndpoint(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)
	for i := 0; i < 3; i++ {
		a.generate(t)
	}

	rr := a.do(t, http.MethodGet, "/api/contents?limit=2&page=2&status=queued&contentType=ad-copy&startDate=2020-01-01", "", a.userID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var list store.ContentList
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list.Items, 1)
	assert.Equal(t, store.PageMeta{Page: 2, Limit: 2, Total: 3, Pages: 2}, list.Meta)

	bad := []string{"?page=abc", "?limit=-1", "?page=9223372036854775807", "?page=99999999", "?startDate=yesterday", "?status=archived", "?startDate=2026-02-01&endDate=2026-01-01"}
	for _, q := range bad {
		rr := a.do(t, http.MethodGet, "/api/contents"+q, "", a.userID)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)
	sub := a.generate(t)
	path := "/api/contents/" + sub.ContentID.String()

	rr := a.do(t, http.MethodPatch, path, `{"title":"Launch","tags":["q4"]}`, a.userID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var job domain.ContentJob
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&job))
	assert.Equal(t, "Launch", job.Title)
	assert.Equal(t, []string{"q4"}, job.Tags)

	rr = a.do(t, http.MethodPatch, path, `{"notes":"keep it short"}`, a.userID)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&job))
	assert.Equal(t, "Launch", job.Title, "absent fields are unchanged")
	assert.Equal(t, "keep it short", job.Notes)

	rr = a.do(t, http.MethodGet, path, "", a.userID)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, http.MethodDelete, path, "", uuid.New())
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = a.do(t, http.MethodDelete, path, "", a.userID)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = a.do(t, http.MethodGet, path, "", a.userID)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegenerateEndpoint(t *testing.T) {
	t.Parallel()
	a := newContentAPI(t)
	sub := a.generate(t)
	path := "/api/contents/" + sub.ContentID.String() + "/regenerate"

	rr := a.do(t, http.MethodPost, path, "", a.userID)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var next service.Submission
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&next))
	assert.Equal(t, sub.ContentID, next.ContentID)
	assert.NotEqual(t, sub.JobID, next.JobID)

	rr = a.do(t, http.MethodPost, path, `{"model":"gemini-1.5-pro"}`, a.userID)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "gemini-1.5-pro", a.store.Job(sub.ContentID).Model)

	rr = a.do(t, http.MethodPost, path, `{"provider":"openai"}`, a.userID)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, http.MethodPost, "/api/contents/"+uuid.NewString()+"/regenerate", "", a.userID)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
