package store

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
)

// Pagination defaults and bounds for List.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps Offset well inside the int range.
	MaxPage = math.MaxInt32 / MaxLimit
)

// ContentFilter narrows a List call. Zero values mean "no constraint".
type ContentFilter struct {
	Status      domain.ContentStatus
	ContentType domain.ContentType
	StartDate   *time.Time
	EndDate     *time.Time
	// Search is a case-insensitive substring matched against the prompt,
	// generated content, tags, notes, title and content type.
	Search string
}

// Page selects one page of a List result. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

// Normalize applies defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// StaleCursor is a position in the ListStale ordering.
type StaleCursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the position just past job.
func CursorAfter(job *domain.ContentJob) *StaleCursor {
	return &StaleCursor{UpdatedAt: job.UpdatedAt, ID: job.ID}
}

// PageMeta describes a List result. Total counts the records matching the
// filter, not all of the owner's records.
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPageMeta computes the page count for total matching records.
func NewPageMeta(p Page, total int) PageMeta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// ContentList is one page of content jobs.
type ContentList struct {
	Items []*domain.ContentJob `json:"items"`
	Meta  PageMeta             `json:"meta"`
}

// MetadataUpdate carries the caller-editable fields. Nil fields are left
// unchanged.
type MetadataUpdate struct {
	Title *string
	Tags  *[]string
	Notes *string
}

// Outcome is the terminal result of one attempt cycle.
type Outcome struct {
	Status           domain.ContentStatus
	GeneratedContent string
	ErrorMessage     string
}

// Completed builds a successful outcome.
func Completed(text string) Outcome {
	return Outcome{Status: domain.ContentStatusCompleted, GeneratedContent: text}
}

// Failed builds a terminal failure outcome.
func Failed(message string) Outcome {
	return Outcome{Status: domain.ContentStatusFailed, ErrorMessage: message}
}

// ContentJobStore defines the persistence operations for content jobs.
// Every owner-scoped read returns ErrContentNotFound both when the record is
// absent and when it belongs to a different user.
type ContentJobStore interface {
	// Create saves a new content job. The job is validated first.
	Create(ctx context.Context, job *domain.ContentJob) error

	// GetByID retrieves a content job by its record ID.
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.ContentJob, error)

	// GetByJobID retrieves a content job by its current job ID.
	GetByJobID(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.ContentJob, error)

	// List returns one page of the owner's jobs, newest first.
	List(ctx context.Context, ownerID uuid.UUID, filter ContentFilter, page Page) (*ContentList, error)

	// UpdateMetadata changes title, tags or notes and returns the updated job.
	UpdateMetadata(ctx context.Context, ownerID, id uuid.UUID, update MetadataUpdate) (*domain.ContentJob, error)

	// BeginAttemptCycle assigns a fresh job ID, clears the previous outcome,
	// resets the status to pending and records the provider and model for
	// the new cycle. The superseded job ID stops matching any record.
	BeginAttemptCycle(
		ctx context.Context,
		ownerID, id uuid.UUID,
		provider domain.Provider,
		model string,
	) (*domain.ContentJob, error)

	// MarkQueued moves a pending job to queued. A job already queued is left
	// as is. Returns ErrStaleAttempt if jobID no longer names a pending or
	// queued record; in particular a job a worker already picked up is never
	// moved back.
	MarkQueued(ctx context.Context, jobID uuid.UUID) error

	// RequeueStale moves a non-terminal job back to queued, but only if it
	// has not been updated since staleBefore. It reports whether the record
	// was changed, so a job that a worker touched in the meantime is left
	// alone.
	RequeueStale(ctx context.Context, jobID uuid.UUID, staleBefore time.Time) (bool, error)

	// MarkProcessing moves a non-terminal job to processing and returns it.
	// Returns ErrStaleAttempt if jobID no longer names a live, non-terminal
	// record.
	MarkProcessing(ctx context.Context, jobID uuid.UUID) (*domain.ContentJob, error)

	// Finalize writes the terminal outcome of the attempt cycle named by
	// jobID. It is the only writer of terminal status. The write applies only
	// while jobID is the record's current job ID and the record is not yet
	// terminal; otherwise it is a no-op reporting applied=false.
	Finalize(ctx context.Context, jobID uuid.UUID, outcome Outcome) (applied bool, err error)

	// ListStale returns non-terminal jobs not updated since olderThan,
	// ordered by (updated_at, id). A non-nil after resumes the listing past
	// that position.
	ListStale(ctx context.Context, olderThan time.Time, after *StaleCursor, limit int) ([]*domain.ContentJob, error)

	// Delete removes a content job.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error

	// WithTx returns a ContentJobStore that runs its statements in tx.
	WithTx(tx *sql.Tx) ContentJobStore
}
