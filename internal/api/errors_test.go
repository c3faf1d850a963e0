package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/phrazzld/inkwell/internal/api/shared"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/service"
	"github.com/phrazzld/inkwell/internal/service/auth"
	"github.com/phrazzld/inkwell/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized, "Invalid refresh token"},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"content not found", fmt.Errorf("get: %w", store.ErrContentNotFound), http.StatusNotFound, "Content not found"},
		{"user not found", store.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"generic not found", store.ErrNotFound, http.StatusNotFound, "Resource not found"},
		{"email exists", store.ErrEmailExists, http.StatusConflict, "Email already exists"},
		{"job id exists", store.ErrJobIDExists, http.StatusConflict, "Resource already exists"},
		{"bad body", fmt.Errorf("%w: unexpected EOF", shared.ErrInvalidBody), http.StatusBadRequest, "Invalid request format"},
		{"empty prompt", domain.ErrEmptyPrompt, http.StatusBadRequest, "Prompt cannot be empty"},
		{"bad content type", fmt.Errorf("submit: %w", domain.ErrInvalidContentType), http.StatusBadRequest, "Invalid content type"},
		{"password too short", domain.ErrPasswordTooShort, http.StatusBadRequest, "Password must be at least 8 characters long"},
		{"ad hoc validation", fmt.Errorf("%w: end date before start date", domain.ErrValidation), http.StatusBadRequest, "End date before start date"},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest, "Invalid entity data"},
		{"provider unavailable", service.ErrProviderUnavailable, http.StatusBadRequest, "Requested provider is not available"},
		{"wrapped service error", service.NewServiceError("submit", "create failed", errors.New("pq: connection reset")),
			http.StatusInternalServerError, "An unexpected error occurred"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, MapErrorToStatusCode(tt.err))
			assert.Equal(t, tt.message, GetSafeErrorMessage(tt.err))
		})
	}
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  any
		want string
	}{
		{"missing prompt", &GenerateRequest{ContentType: "ad-copy"}, "Invalid prompt: required field"},
		{"unknown provider", &GenerateRequest{Prompt: "p", ContentType: "ad-copy", Provider: "mistral"}, "Invalid provider: invalid value"},
		{"bad email", &LoginRequest{Email: "nope", Password: "x"}, "Invalid email: invalid email format"},
		{"long password", &RegisterRequest{Name: "Ada", Email: "a@b.co", Password: strings.Repeat("x", 80)}, "Invalid password: too long"},
		{"missing name", &RegisterRequest{Email: "a@b.co", Password: "correct horse"}, "Invalid name: required field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := shared.ValidateRequest(tt.req)
			assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))
			assert.Equal(t, tt.want, SanitizeValidationError(err))
		})
	}
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("plain")))
}
