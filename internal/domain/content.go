package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ContentStatus represents the generation state of a content job.
type ContentStatus string

// Possible content job status values.
const (
	ContentStatusPending    ContentStatus = "pending"
	ContentStatusQueued     ContentStatus = "queued"
	ContentStatusProcessing ContentStatus = "processing"
	ContentStatusCompleted  ContentStatus = "completed"
	ContentStatusFailed     ContentStatus = "failed"
)

// ContentType is the kind of text a job asks the provider to write.
type ContentType string

// Supported content types.
const (
	ContentTypeBlogPostOutline    ContentType = "blog-post-outline"
	ContentTypeBlogPost           ContentType = "blog-post"
	ContentTypeProductDescription ContentType = "product-description"
	ContentTypeSocialMediaCaption ContentType = "social-media-caption"
	ContentTypeEmailSubjectLine   ContentType = "email-subject-line"
	ContentTypeAdCopy             ContentType = "ad-copy"
)

// Provider names an external text generation backend.
type Provider string

// Supported providers.
const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// MaxPromptLength is the largest prompt accepted, in characters.
const MaxPromptLength = 1000

// Validation errors for ContentJob. All of them wrap ErrValidation.
var (
	ErrEmptyContentID      = fmt.Errorf("%w: content ID cannot be empty", ErrValidation)
	ErrEmptyJobID          = fmt.Errorf("%w: job ID cannot be empty", ErrValidation)
	ErrEmptyContentUserID  = fmt.Errorf("%w: content user ID cannot be empty", ErrValidation)
	ErrEmptyPrompt         = fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	ErrPromptTooLong       = fmt.Errorf("%w: prompt cannot be more than %d characters", ErrValidation, MaxPromptLength)
	ErrInvalidContentType  = fmt.Errorf("%w: invalid content type", ErrValidation)
	ErrInvalidProvider     = fmt.Errorf("%w: invalid provider", ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("%w: invalid content status", ErrValidation)
	ErrContentWithoutState = fmt.Errorf("%w: generated content requires completed status", ErrValidation)
	ErrErrorWithoutState   = fmt.Errorf("%w: error message requires failed status", ErrValidation)
)

// ContentJob is one generation request together with the outcome of its
// current attempt cycle. ID is stable for the life of the record while JobID
// identifies the attempt cycle and changes on every regenerate.
type ContentJob struct {
	ID               uuid.UUID     `json:"contentId"`
	JobID            uuid.UUID     `json:"jobId"`
	UserID           uuid.UUID     `json:"userId"`
	Prompt           string        `json:"prompt"`
	ContentType      ContentType   `json:"contentType"`
	Provider         Provider      `json:"provider"`
	Model            string        `json:"model"`
	Status           ContentStatus `json:"status"`
	GeneratedContent string        `json:"generatedContent"`
	ErrorMessage     string        `json:"error,omitempty"`
	Title            string        `json:"title"`
	Tags             []string      `json:"tags"`
	Notes            string        `json:"notes"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// NewContentJob creates a pending content job with fresh record and job IDs.
// The prompt is trimmed before validation.
func NewContentJob(
	userID uuid.UUID,
	prompt string,
	contentType ContentType,
	provider Provider,
	model string,
) (*ContentJob, error) {
	now := time.Now().UTC()
	job := &ContentJob{
		ID:          uuid.New(),
		JobID:       uuid.New(),
		UserID:      userID,
		Prompt:      strings.TrimSpace(prompt),
		ContentType: contentType,
		Provider:    provider,
		Model:       model,
		Status:      ContentStatusPending,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks field constraints and the status/outcome invariants:
// generated content is present only when completed and an error message is
// present only when failed.
func (c *ContentJob) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyContentID
	}
	if c.JobID == uuid.Nil {
		return ErrEmptyJobID
	}
	if c.UserID == uuid.Nil {
		return ErrEmptyContentUserID
	}
	if c.Prompt == "" {
		return ErrEmptyPrompt
	}
	if utf8.RuneCountInString(c.Prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if !c.ContentType.IsValid() {
		return ErrInvalidContentType
	}
	if !c.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if !c.Status.IsValid() {
		return ErrInvalidStatus
	}
	if (c.GeneratedContent != "") != (c.Status == ContentStatusCompleted) {
		return ErrContentWithoutState
	}
	if (c.ErrorMessage != "") != (c.Status == ContentStatusFailed) {
		return ErrErrorWithoutState
	}
	return nil
}

// IsTerminal reports whether the current attempt cycle has finished.
func (c *ContentJob) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// IsValid reports whether s is a known status.
func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentStatusPending,
		ContentStatusQueued,
		ContentStatusProcessing,
		ContentStatusCompleted,
		ContentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s ends an attempt cycle.
func (s ContentStatus) IsTerminal() bool {
	return s == ContentStatusCompleted || s == ContentStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed within a
// single attempt cycle. Re-entering processing covers retries, and moving
// back to queued covers reconciliation of stuck attempts. Starting a new
// cycle is not a transition; it happens through a new job ID.
func (s ContentStatus) CanTransitionTo(next ContentStatus) bool {
	switch s {
	case ContentStatusPending:
		return next == ContentStatusQueued || next == ContentStatusProcessing ||
			next.IsTerminal()
	case ContentStatusQueued:
		return next == ContentStatusQueued || next == ContentStatusProcessing ||
			next.IsTerminal()
	case ContentStatusProcessing:
		return next == ContentStatusProcessing || next == ContentStatusQueued ||
			next.IsTerminal()
	}
	return false
}

// ContentStatuses returns every status in lifecycle order.
func ContentStatuses() []ContentStatus {
	return []ContentStatus{
		ContentStatusPending,
		ContentStatusQueued,
		ContentStatusProcessing,
		ContentStatusCompleted,
		ContentStatusFailed,
	}
}

// ContentTypes returns every supported content type.
func ContentTypes() []ContentType {
	return []ContentType{
		ContentTypeBlogPostOutline,
		ContentTypeBlogPost,
		ContentTypeProductDescription,
		ContentTypeSocialMediaCaption,
		ContentTypeEmailSubjectLine,
		ContentTypeAdCopy,
	}
}

// IsValid reports whether t is a supported content type.
func (t ContentType) IsValid() bool {
	for _, known := range ContentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// IsValid reports whether p is a supported provider.
func (p Provider) IsValid() bool {
	return p == ProviderGemini || p == ProviderOpenAI
}
