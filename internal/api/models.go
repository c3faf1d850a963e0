package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse defines the successful response for register and login.
type AuthResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    string    `json:"expires_at"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse defines the successful response for the token refresh endpoint.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

// GenerateRequest is the body of POST /api/contents/generate.
type GenerateRequest struct {
	Prompt      string `json:"prompt"      validate:"required,max=1000"`
	ContentType string `json:"contentType" validate:"required"`
	Provider    string `json:"provider"    validate:"omitempty,oneof=gemini openai"`
	Model       string `json:"model"       validate:"omitempty,max=100"`
}

// RegenerateRequest is the optional body of POST /api/contents/{id}/regenerate.
type RegenerateRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=gemini openai"`
	Model    string `json:"model"    validate:"omitempty,max=100"`
}

// UpdateMetadataRequest is the body of PATCH /api/contents/{id}. Absent
// fields are left unchanged.
type UpdateMetadataRequest struct {
	Title *string   `json:"title" validate:"omitempty,max=200"`
	Tags  *[]string `json:"tags"  validate:"omitempty,max=20,dive,max=50"`
	Notes *string   `json:"notes" validate:"omitempty,max=5000"`
}

// StatusResponse is the body of GET /api/contents/{id}/status, where id is the job ID.
type StatusResponse struct {
	JobID            uuid.UUID            `json:"jobId"`
	ContentID        uuid.UUID            `json:"contentId"`
	Status           domain.ContentStatus `json:"status"`
	GeneratedContent string               `json:"generatedContent"`
	Error            string               `json:"error,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

func statusResponse(job *domain.ContentJob) StatusResponse {
	return StatusResponse{
		JobID:            job.JobID,
		ContentID:        job.ID,
		Status:           job.Status,
		GeneratedContent: job.GeneratedContent,
		Error:            job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}
