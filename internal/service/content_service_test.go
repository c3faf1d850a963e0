package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/mocks"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"github.com/phrazzld/inkwell/internal/queue"
	"github.com/phrazzld/inkwell/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingQueue rejects every Enqueue.
type failingQueue struct {
	*queue.MemoryQueue
	err error
}

func (q *failingQueue) Enqueue(context.Context, queue.Payload, time.Duration) error {
	return q.err
}

type contentFixture struct {
	store   *mocks.MockContentJobStore
	queue   *queue.MemoryQueue
	service ContentService
	userID  uuid.UUID
}

func newContentFixture(t *testing.T, q queue.Queue) *contentFixture {
	t.Helper()
	log, _ := logger.NewTestLogger()

	router, err := generation.NewRouter(domain.ProviderGemini, map[domain.Provider]generation.Generator{
		domain.ProviderGemini: &mocks.MockGenerator{},
		domain.ProviderOpenAI: &mocks.MockGenerator{},
	}, nil)
	require.NoError(t, err)

	f := &contentFixture{
		store:  mocks.NewMockContentJobStore(),
		queue:  queue.NewMemoryQueue(queue.Options{}),
		userID: uuid.New(),
	}
	if q == nil {
		q = f.queue
	}
	f.service, err = NewContentService(f.store, q, router, 0, log)
	require.NoError(t, err)
	return f
}

func (f *contentFixture) submit(t *testing.T) *Submission {
	t.Helper()
	sub, err := f.service.Submit(context.Background(), f.userID, SubmitRequest{
		Prompt:      "Launch of product X",
		ContentType: domain.ContentTypeAdCopy,
	})
	require.NoError(t, err)
	return sub
}

func TestSubmitCreatesQueuedJob(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	ctx := context.Background()

	sub := f.submit(t)
	assert.NotEqual(t, uuid.Nil, sub.JobID)
	assert.NotEqual(t, sub.JobID, sub.ContentID)
	assert.WithinDuration(t, time.Now(), sub.ExpectedCompletion, time.Second)

	job := f.store.Job(sub.ContentID)
	require.NotNil(t, job)
	assert.Equal(t, domain.ContentStatusQueued, job.Status)
	assert.Equal(t, domain.ProviderGemini, job.Provider)
	assert.Equal(t, generation.DefaultGeminiModel, job.Model)

	lease, err := f.queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, sub.JobID, lease.Payload.JobID)
	assert.Equal(t, sub.ContentID, lease.Payload.ContentID)
	assert.Equal(t, f.userID, lease.Payload.UserID)
}

func TestSubmitAppliesQueueDelay(t *testing.T) {
	t.Parallel()
	log, _ := logger.NewTestLogger()
	router, err := generation.NewRouter(domain.ProviderGemini,
		map[domain.Provider]generation.Generator{domain.ProviderGemini: &mocks.MockGenerator{}}, nil)
	require.NoError(t, err)
	q := queue.NewMemoryQueue(queue.Options{})

	svc, err := NewContentService(mocks.NewMockContentJobStore(), q, router, time.Minute, log)
	require.NoError(t, err)

	sub, err := svc.Submit(context.Background(), uuid.New(), SubmitRequest{Prompt: "p", ContentType: domain.ContentTypeBlogPost})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), sub.ExpectedCompletion, time.Second)

	_, err = q.Claim(context.Background())
	assert.ErrorIs(t, err, queue.ErrNoTask)
	assert.Equal(t, 1, q.Len())
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	log, _ := logger.NewTestLogger()
	geminiOnly, err := generation.NewRouter(domain.ProviderGemini,
		map[domain.Provider]generation.Generator{domain.ProviderGemini: &mocks.MockGenerator{}}, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr error
	}{
		{"empty prompt", SubmitRequest{Prompt: "   ", ContentType: domain.ContentTypeAdCopy}, domain.ErrEmptyPrompt},
		{"unknown content type", SubmitRequest{Prompt: "p", ContentType: "haiku"}, domain.ErrInvalidContentType},
		{"unknown provider", SubmitRequest{Prompt: "p", ContentType: domain.ContentTypeAdCopy, Provider: "mistral"}, domain.ErrInvalidProvider},
		{"unconfigured provider", SubmitRequest{Prompt: "p", ContentType: domain.ContentTypeAdCopy, Provider: domain.ProviderOpenAI}, ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := mocks.NewMockContentJobStore()
			q := queue.NewMemoryQueue(queue.Options{})
			svc, err := NewContentService(jobs, q, geminiOnly, 0, log)
			require.NoError(t, err)

			_, err = svc.Submit(context.Background(), uuid.New(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, q.Len())
		})
	}
}

func TestSubmitLeavesJobPendingWhenEnqueueFails(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, &failingQueue{MemoryQueue: queue.NewMemoryQueue(queue.Options{}), err: errors.New("redis down")})

	sub := f.submit(t)
	job := f.store.Job(sub.ContentID)
	require.NotNil(t, job)
	assert.Equal(t, domain.ContentStatusPending, job.Status)
}

func TestSubmitToleratesWorkerWinningTheRace(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	f.store.MarkQueuedFn = func(context.Context, uuid.UUID) error { return store.ErrStaleAttempt }

	sub := f.submit(t)
	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, domain.ContentStatusPending, f.store.Job(sub.ContentID).Status)
}

func TestSubmitWrapsStoreFailure(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	cause := errors.New("connection reset")
	f.store.CreateFn = func(context.Context, *domain.ContentJob) error { return cause }

	_, err := f.service.Submit(context.Background(), f.userID, SubmitRequest{Prompt: "p", ContentType: domain.ContentTypeAdCopy})
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "submit", se.Operation)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, f.queue.Len())
}

func TestOwnerScopedReads(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	ctx := context.Background()
	sub := f.submit(t)

	job, err := f.service.GetStatus(ctx, f.userID, sub.JobID)
	require.NoError(t, err)
	assert.Equal(t, sub.ContentID, job.ID)

	job, err = f.service.Get(ctx, f.userID, sub.ContentID)
	require.NoError(t, err)
	assert.Equal(t, sub.JobID, job.JobID)

	stranger := uuid.New()
	_, err = f.service.GetStatus(ctx, stranger, sub.JobID)
	assert.ErrorIs(t, err, store.ErrContentNotFound)
	_, err = f.service.Get(ctx, stranger, sub.ContentID)
	assert.ErrorIs(t, err, store.ErrContentNotFound)
	assert.ErrorIs(t, f.service.Delete(ctx, stranger, sub.ContentID), store.ErrContentNotFound)
}

func TestRegenerateStartsNewCycle(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	ctx := context.Background()
	first := f.submit(t)

	lease, err := f.queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, f.queue.Complete(ctx, lease))
	_, err = f.store.Finalize(ctx, first.JobID, store.Completed("Old copy."))
	require.NoError(t, err)

	second, err := f.service.Regenerate(ctx, f.userID, first.ContentID, RegenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, first.ContentID, second.ContentID)
	assert.NotEqual(t, first.JobID, second.JobID)

	job := f.store.Job(first.ContentID)
	assert.Equal(t, domain.ContentStatusQueued, job.Status)
	assert.Empty(t, job.GeneratedContent)
	assert.Equal(t, domain.ProviderGemini, job.Provider)
	assert.Equal(t, generation.DefaultGeminiModel, job.Model)

	_, err = f.service.GetStatus(ctx, f.userID, first.JobID)
	assert.ErrorIs(t, err, store.ErrContentNotFound, "superseded job ID no longer resolves")

	lease, err = f.queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.JobID, lease.Payload.JobID)
}

func TestRegenerateProviderOverride(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	ctx := context.Background()
	first := f.submit(t)

	_, err := f.service.Regenerate(ctx, f.userID, first.ContentID, RegenerateRequest{Provider: domain.ProviderOpenAI, Model: "gpt-4o"})
	require.NoError(t, err)
	job := f.store.Job(first.ContentID)
	assert.Equal(t, domain.ProviderOpenAI, job.Provider)
	assert.Equal(t, "gpt-4o", job.Model)

	_, err = f.service.Regenerate(ctx, f.userID, first.ContentID, RegenerateRequest{Provider: domain.ProviderGemini})
	require.NoError(t, err)
	assert.Equal(t, generation.DefaultGeminiModel, f.store.Job(first.ContentID).Model)

	_, err = f.service.Regenerate(ctx, uuid.New(), first.ContentID, RegenerateRequest{})
	assert.ErrorIs(t, err, store.ErrContentNotFound)
}

func TestUpdateMetadataAndDelete(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	ctx := context.Background()
	sub := f.submit(t)

	title := "Launch"
	tags := []string{"q4", "launch"}
	job, err := f.service.UpdateMetadata(ctx, f.userID, sub.ContentID, store.MetadataUpdate{Title: &title, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Launch", job.Title)
	assert.Equal(t, tags, job.Tags)
	assert.Empty(t, job.Notes)

	require.NoError(t, f.service.Delete(ctx, f.userID, sub.ContentID))
	_, err = f.service.Get(ctx, f.userID, sub.ContentID)
	assert.ErrorIs(t, err, store.ErrContentNotFound)
}

func TestListValidatesFilter(t *testing.T) {
	t.Parallel()
	f := newContentFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.submit(t)
	}

	list, err := f.service.List(ctx, f.userID, store.ContentFilter{}, store.Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, store.PageMeta{Page: 1, Limit: 2, Total: 3, Pages: 2}, list.Meta)

	start := time.Now()
	end := start.Add(-time.Hour)
	bad := []store.ContentFilter{
		{Status: "archived"},
		{ContentType: "haiku"},
		{StartDate: &start, EndDate: &end},
	}
	for _, filter := range bad {
		_, err := f.service.List(ctx, f.userID, filter, store.Page{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestNewContentServiceValidation(t *testing.T) {
	t.Parallel()
	log, _ := logger.NewTestLogger()
	jobs := mocks.NewMockContentJobStore()
	q := queue.NewMemoryQueue(queue.Options{})
	router, err := generation.NewRouter(domain.ProviderGemini,
		map[domain.Provider]generation.Generator{domain.ProviderGemini: &mocks.MockGenerator{}}, nil)
	require.NoError(t, err)

	_, err = NewContentService(nil, q, router, 0, log)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewContentService(jobs, nil, router, 0, log)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewContentService(jobs, q, nil, 0, log)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewContentService(jobs, q, router, 0, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
