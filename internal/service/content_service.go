package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/metrics"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"github.com/phrazzld/inkwell/internal/queue"
	"github.com/phrazzld/inkwell/internal/store"
)

// ProviderResolver picks the provider and model a job will run with.
// generation.Router satisfies it.
type ProviderResolver interface {
	Resolve(provider domain.Provider, model string) (domain.Provider, string, error)
}

// SubmitRequest is a new generation request.
type SubmitRequest struct {
	Prompt      string
	ContentType domain.ContentType
	Provider    domain.Provider
	Model       string
}

// RegenerateRequest starts a new attempt cycle on an existing record. Empty
// fields keep the record's current provider and model.
type RegenerateRequest struct {
	Provider domain.Provider
	Model    string
}

// Submission is the receipt for an accepted job.
type Submission struct {
	JobID              uuid.UUID `json:"jobId"`
	ContentID          uuid.UUID `json:"contentId"`
	ExpectedCompletion time.Time `json:"expectedCompletion"`
}

// ContentService provides the content job use cases. All operations are
// scoped to the owning user.
type ContentService interface {
	// Submit creates a pending record and schedules its first attempt cycle.
	Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Submission, error)

	// GetStatus looks a record up by its current job ID.
	GetStatus(ctx context.Context, userID, jobID uuid.UUID) (*domain.ContentJob, error)

	// List returns one page of the user's records, newest first.
	List(ctx context.Context, userID uuid.UUID, filter store.ContentFilter, page store.Page) (*store.ContentList, error)

	// Get looks a record up by its stable content ID.
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.ContentJob, error)

	// UpdateMetadata changes title, tags or notes.
	UpdateMetadata(ctx context.Context, userID, id uuid.UUID, update store.MetadataUpdate) (*domain.ContentJob, error)

	// Regenerate discards the current outcome and schedules a new attempt
	// cycle under a new job ID.
	Regenerate(ctx context.Context, userID, id uuid.UUID, req RegenerateRequest) (*Submission, error)

	// Delete removes a record. A task already in the queue is dropped when a
	// worker picks it up.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type contentServiceImpl struct {
	store    store.ContentJobStore
	queue    queue.Queue
	resolver ProviderResolver
	delay    time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

var _ ContentService = (*contentServiceImpl)(nil)

// NewContentService creates a ContentService. delay is the fixed time a new
// task waits in the queue before it becomes due.
func NewContentService(
	jobs store.ContentJobStore,
	q queue.Queue,
	resolver ProviderResolver,
	delay time.Duration,
	log *slog.Logger,
) (ContentService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("%w: content store", ErrNotConfigured)
	}
	if q == nil {
		return nil, fmt.Errorf("%w: queue", ErrNotConfigured)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: provider resolver", ErrNotConfigured)
	}
	if log == nil {
		return nil, fmt.Errorf("%w: logger", ErrNotConfigured)
	}
	if delay < 0 {
		delay = 0
	}

	return &contentServiceImpl{
		store:    jobs,
		queue:    q,
		resolver: resolver,
		delay:    delay,
		logger:   log.With(slog.String("component", "content_service")),
		now:      time.Now,
	}, nil
}

func (s *contentServiceImpl) resolve(provider domain.Provider, model string) (domain.Provider, string, error) {
	p, m, err := s.resolver.Resolve(provider, model)
	if errors.Is(err, generation.ErrInvalidConfig) {
		return "", "", fmt.Errorf("%w: %s", ErrProviderUnavailable, provider)
	}
	return p, m, err
}

// Submit implements ContentService.
func (s *contentServiceImpl) Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Submission, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	provider, model, err := s.resolve(req.Provider, req.Model)
	if err != nil {
		return nil, err
	}

	job, err := domain.NewContentJob(userID, req.Prompt, req.ContentType, provider, model)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, job); err != nil {
		log.Error("failed to create content job",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("submit", "failed to save content job", err)
	}
	metrics.IncSubmitted(string(job.ContentType))

	s.schedule(ctx, log, job)

	log.Info("content job submitted",
		slog.String("job_id", job.JobID.String()),
		slog.String("content_id", job.ID.String()),
		slog.String("provider", string(job.Provider)),
		slog.String("model", job.Model))

	return s.receipt(job), nil
}

// schedule enqueues the current attempt cycle of job and marks it queued.
// Failures only leave the record pending; the stale sweep enqueues it later.
func (s *contentServiceImpl) schedule(ctx context.Context, log *slog.Logger, job *domain.ContentJob) {
	err := s.queue.Enqueue(ctx, queue.PayloadFor(job), s.delay)
	if err != nil && !errors.Is(err, queue.ErrDuplicateTask) {
		log.Error("failed to enqueue content job, leaving it for the sweep",
			slog.String("error", err.Error()),
			slog.String("job_id", job.JobID.String()))
		return
	}

	err = s.store.MarkQueued(ctx, job.JobID)
	switch {
	case err == nil:
		job.Status = domain.ContentStatusQueued
	case errors.Is(err, store.ErrStaleAttempt):
		// A worker already picked it up, or the record is gone.
		log.Debug("content job moved on before it was marked queued",
			slog.String("job_id", job.JobID.String()))
	default:
		log.Warn("failed to mark content job queued",
			slog.String("error", err.Error()),
			slog.String("job_id", job.JobID.String()))
	}
}

func (s *contentServiceImpl) receipt(job *domain.ContentJob) *Submission {
	return &Submission{
		JobID:              job.JobID,
		ContentID:          job.ID,
		ExpectedCompletion: s.now().UTC().Add(s.delay),
	}
}

// GetStatus implements ContentService.
func (s *contentServiceImpl) GetStatus(ctx context.Context, userID, jobID uuid.UUID) (*domain.ContentJob, error) {
	job, err := s.store.GetByJobID(ctx, userID, jobID)
	if err != nil {
		return nil, NewServiceError("get_status", "failed to load content job", err)
	}
	return job, nil
}

// List implements ContentService.
func (s *contentServiceImpl) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.ContentFilter,
	page store.Page,
) (*store.ContentList, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}
	if filter.ContentType != "" && !filter.ContentType.IsValid() {
		return nil, domain.ErrInvalidContentType
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date is before start date", domain.ErrValidation)
	}

	list, err := s.store.List(ctx, userID, filter, page.Normalize())
	if err != nil {
		return nil, NewServiceError("list", "failed to list content jobs", err)
	}
	return list, nil
}

// Get implements ContentService.
func (s *contentServiceImpl) Get(ctx context.Context, userID, id uuid.UUID) (*domain.ContentJob, error) {
	job, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, NewServiceError("get", "failed to load content job", err)
	}
	return job, nil
}

// UpdateMetadata implements ContentService.
func (s *contentServiceImpl) UpdateMetadata(
	ctx context.Context,
	userID, id uuid.UUID,
	update store.MetadataUpdate,
) (*domain.ContentJob, error) {
	job, err := s.store.UpdateMetadata(ctx, userID, id, update)
	if err != nil {
		return nil, NewServiceError("update_metadata", "failed to update content job", err)
	}
	return job, nil
}

// Regenerate implements ContentService.
func (s *contentServiceImpl) Regenerate(
	ctx context.Context,
	userID, id uuid.UUID,
	req RegenerateRequest,
) (*Submission, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, NewServiceError("regenerate", "failed to load content job", err)
	}

	provider, model := req.Provider, req.Model
	if provider == "" {
		provider = current.Provider
		if model == "" {
			model = current.Model
		}
	}
	provider, model, err = s.resolve(provider, model)
	if err != nil {
		return nil, err
	}

	job, err := s.store.BeginAttemptCycle(ctx, userID, id, provider, model)
	if err != nil {
		return nil, NewServiceError("regenerate", "failed to start attempt cycle", err)
	}
	metrics.IncSubmitted(string(job.ContentType))

	s.schedule(ctx, log, job)

	log.Info("content job regenerated",
		slog.String("job_id", job.JobID.String()),
		slog.String("previous_job_id", current.JobID.String()),
		slog.String("content_id", job.ID.String()))

	return s.receipt(job), nil
}

// Delete implements ContentService.
func (s *contentServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return NewServiceError("delete", "failed to delete content job", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("content job deleted",
		slog.String("content_id", id.String()))
	return nil
}
