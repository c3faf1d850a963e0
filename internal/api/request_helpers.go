package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/api/shared"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/store"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// requireUserAndPathID extracts both the authenticated user and a path UUID,
// writing an error response and returning false if either is missing.
func requireUserAndPathID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return uuid.Nil, uuid.Nil, false
	}

	id, err := getPathUUID(r, paramName)
	if err != nil {
		HandleAPIError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

// parseListQuery reads the list filter and page from the query string.
// Dates accept RFC 3339 timestamps or plain YYYY-MM-DD dates; a plain end
// date includes the whole day.
func parseListQuery(r *http.Request) (store.ContentFilter, store.Page, error) {
	q := r.URL.Query()
	filter := store.ContentFilter{
		Status:      domain.ContentStatus(q.Get("status")),
		ContentType: domain.ContentType(q.Get("contentType")),
		Search:      q.Get("search"),
	}

	var err error
	if filter.StartDate, err = parseDate(q.Get("startDate"), false); err != nil {
		return filter, store.Page{}, err
	}
	if filter.EndDate, err = parseDate(q.Get("endDate"), true); err != nil {
		return filter, store.Page{}, err
	}

	var page store.Page
	if page.Page, err = parseInt(q.Get("page"), "page"); err != nil {
		return filter, page, err
	}
	if page.Page > store.MaxPage {
		return filter, page, fmt.Errorf("%w: page must not exceed %d", domain.ErrValidation, store.MaxPage)
	}
	if page.Limit, err = parseInt(q.Get("limit"), "limit"); err != nil {
		return filter, page, err
	}
	return filter, page, nil
}

func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", domain.ErrValidation, raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, name)
	}
	return n, nil
}
