package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/phrazzld/inkwell/internal/api/shared"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/service"
	"github.com/phrazzld/inkwell/internal/store"
)

// ContentHandler serves the content job endpoints. Every route expects the
// auth middleware to have put the caller's user ID in the context.
type ContentHandler struct {
	contents service.ContentService
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(contents service.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// Generate handles POST /api/contents/generate.
func (h *ContentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req GenerateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sub, err := h.contents.Submit(r.Context(), userID, service.SubmitRequest{
		Prompt:      req.Prompt,
		ContentType: domain.ContentType(req.ContentType),
		Provider:    domain.Provider(req.Provider),
		Model:       req.Model,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, sub)
}

// Status handles GET /api/contents/{id}/status, where id is the job ID of
// the current attempt cycle.
func (h *ContentHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.contents.GetStatus(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, statusResponse(job))
}

// List handles GET /api/contents.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	filter, page, err := parseListQuery(r)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	list, err := h.contents.List(r.Context(), userID, filter, page)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// Get handles GET /api/contents/{id}.
func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.contents.Get(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, job)
}

// UpdateMetadata handles PATCH /api/contents/{id}.
func (h *ContentHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job, err := h.contents.UpdateMetadata(r.Context(), userID, id, store.MetadataUpdate{
		Title: req.Title,
		Tags:  req.Tags,
		Notes: req.Notes,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, job)
}

// Regenerate handles POST /api/contents/{id}/regenerate. The body is
// optional.
func (h *ContentHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	var req RegenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		HandleAPIError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	sub, err := h.contents.Regenerate(r.Context(), userID, id, service.RegenerateRequest{
		Provider: domain.Provider(req.Provider),
		Model:    req.Model,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, sub)
}

// Delete handles DELETE /api/contents/{id}.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := requireUserAndPathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.contents.Delete(r.Context(), userID, id); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
