package mocks

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/store"
)

// MockContentJobStore implements store.ContentJobStore in memory. Fn hooks
// override the default behavior of individual operations. The default
// behavior applies the same job ID fencing as the PostgreSQL store.
type MockContentJobStore struct {
	CreateFn         func(ctx context.Context, job *domain.ContentJob) error
	MarkQueuedFn     func(ctx context.Context, jobID uuid.UUID) error
	MarkProcessingFn func(ctx context.Context, jobID uuid.UUID) (*domain.ContentJob, error)
	FinalizeFn       func(ctx context.Context, jobID uuid.UUID, outcome store.Outcome) (bool, error)
	ListStaleFn      func(ctx context.Context, olderThan time.Time, after *store.StaleCursor, limit int) ([]*domain.ContentJob, error)

	// Now stamps updated_at. Defaults to time.Now.
	Now func() time.Time

	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.ContentJob
}

var _ store.ContentJobStore = (*MockContentJobStore)(nil)

// NewMockContentJobStore creates an empty store.
func NewMockContentJobStore() *MockContentJobStore {
	return &MockContentJobStore{
		Now:  time.Now,
		jobs: make(map[uuid.UUID]*domain.ContentJob),
	}
}

// Put stores a copy of job as is, bypassing validation.
func (m *MockContentJobStore) Put(job *domain.ContentJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = clone(job)
}

// Job returns a copy of the record with the given ID, or nil.
func (m *MockContentJobStore) Job(id uuid.UUID) *domain.ContentJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return clone(j)
	}
	return nil
}

func clone(j *domain.ContentJob) *domain.ContentJob {
	c := *j
	c.Tags = append([]string{}, j.Tags...)
	return &c
}

func (m *MockContentJobStore) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *MockContentJobStore) byJobID(jobID uuid.UUID) *domain.ContentJob {
	for _, j := range m.jobs {
		if j.JobID == jobID {
			return j
		}
	}
	return nil
}

// Create implements store.ContentJobStore.
func (m *MockContentJobStore) Create(ctx context.Context, job *domain.ContentJob) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return store.ErrDuplicate
	}
	if m.byJobID(job.JobID) != nil {
		return store.ErrJobIDExists
	}
	m.jobs[job.ID] = clone(job)
	return nil
}

// GetByID implements store.ContentJobStore.
func (m *MockContentJobStore) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.ContentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.UserID != ownerID {
		return nil, store.ErrContentNotFound
	}
	return clone(j), nil
}

// GetByJobID implements store.ContentJobStore.
func (m *MockContentJobStore) GetByJobID(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.ContentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.byJobID(jobID)
	if j == nil || j.UserID != ownerID {
		return nil, store.ErrContentNotFound
	}
	return clone(j), nil
}

// List implements store.ContentJobStore. Search matches the prompt, content,
// title, notes and tags.
func (m *MockContentJobStore) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ContentFilter,
	page store.Page,
) (*store.ContentList, error) {
	page = page.Normalize()

	m.mu.Lock()
	var matched []*domain.ContentJob
	for _, j := range m.jobs {
		if j.UserID == ownerID && matches(j, filter) {
			matched = append(matched, clone(j))
		}
	}
	m.mu.Unlock()

	sort.Slice(matched, func(a, b int) bool { return matched[a].CreatedAt.After(matched[b].CreatedAt) })

	items := []*domain.ContentJob{}
	if off := page.Offset(); off < len(matched) {
		end := off + page.Limit
		if end > len(matched) {
			end = len(matched)
		}
		items = matched[off:end]
	}
	return &store.ContentList{Items: items, Meta: store.NewPageMeta(page, len(matched))}, nil
}

func matches(j *domain.ContentJob, f store.ContentFilter) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.ContentType != "" && j.ContentType != f.ContentType {
		return false
	}
	if f.StartDate != nil && j.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && j.CreatedAt.After(*f.EndDate) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	fields := append([]string{j.Prompt, j.GeneratedContent, j.Title, j.Notes, string(j.ContentType)}, j.Tags...)
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// UpdateMetadata implements store.ContentJobStore.
func (m *MockContentJobStore) UpdateMetadata(
	ctx context.Context,
	ownerID, id uuid.UUID,
	update store.MetadataUpdate,
) (*domain.ContentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.UserID != ownerID {
		return nil, store.ErrContentNotFound
	}
	if update.Title != nil {
		j.Title = *update.Title
	}
	if update.Tags != nil {
		j.Tags = append([]string{}, (*update.Tags)...)
	}
	if update.Notes != nil {
		j.Notes = *update.Notes
	}
	j.UpdatedAt = m.now()
	return clone(j), nil
}

// BeginAttemptCycle implements store.ContentJobStore.
func (m *MockContentJobStore) BeginAttemptCycle(
	ctx context.Context,
	ownerID, id uuid.UUID,
	provider domain.Provider,
	model string,
) (*domain.ContentJob, error) {
	if !provider.IsValid() {
		return nil, domain.ErrInvalidProvider
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.UserID != ownerID {
		return nil, store.ErrContentNotFound
	}
	j.JobID = uuid.New()
	j.Status = domain.ContentStatusPending
	j.GeneratedContent = ""
	j.ErrorMessage = ""
	j.Provider = provider
	j.Model = model
	j.UpdatedAt = m.now()
	return clone(j), nil
}

// MarkQueued implements store.ContentJobStore.
func (m *MockContentJobStore) MarkQueued(ctx context.Context, jobID uuid.UUID) error {
	if m.MarkQueuedFn != nil {
		return m.MarkQueuedFn(ctx, jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.byJobID(jobID)
	if j == nil || (j.Status != domain.ContentStatusPending && j.Status != domain.ContentStatusQueued) {
		return store.ErrStaleAttempt
	}
	j.Status = domain.ContentStatusQueued
	j.UpdatedAt = m.now()
	return nil
}

// RequeueStale implements store.ContentJobStore.
func (m *MockContentJobStore) RequeueStale(ctx context.Context, jobID uuid.UUID, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.byJobID(jobID)
	if j == nil || !j.Status.CanTransitionTo(domain.ContentStatusQueued) || !j.UpdatedAt.Before(staleBefore) {
		return false, nil
	}
	j.Status = domain.ContentStatusQueued
	j.UpdatedAt = m.now()
	return true, nil
}

// MarkProcessing implements store.ContentJobStore.
func (m *MockContentJobStore) MarkProcessing(ctx context.Context, jobID uuid.UUID) (*domain.ContentJob, error) {
	if m.MarkProcessingFn != nil {
		return m.MarkProcessingFn(ctx, jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.byJobID(jobID)
	if j == nil || !j.Status.CanTransitionTo(domain.ContentStatusProcessing) {
		return nil, store.ErrStaleAttempt
	}
	j.Status = domain.ContentStatusProcessing
	j.UpdatedAt = m.now()
	return clone(j), nil
}

// Finalize implements store.ContentJobStore.
func (m *MockContentJobStore) Finalize(ctx context.Context, jobID uuid.UUID, outcome store.Outcome) (bool, error) {
	if m.FinalizeFn != nil {
		return m.FinalizeFn(ctx, jobID, outcome)
	}
	if !outcome.Status.IsTerminal() {
		return false, domain.ErrInvalidStatus
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.byJobID(jobID)
	if j == nil || !j.Status.CanTransitionTo(outcome.Status) {
		return false, nil
	}
	j.Status = outcome.Status
	j.GeneratedContent = outcome.GeneratedContent
	j.ErrorMessage = outcome.ErrorMessage
	j.UpdatedAt = m.now()
	return true, nil
}

// ListStale implements store.ContentJobStore.
func (m *MockContentJobStore) ListStale(
	ctx context.Context,
	olderThan time.Time,
	after *store.StaleCursor,
	limit int,
) ([]*domain.ContentJob, error) {
	if m.ListStaleFn != nil {
		return m.ListStaleFn(ctx, olderThan, after, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ContentJob
	for _, j := range m.jobs {
		if !j.IsTerminal() && j.UpdatedAt.Before(olderThan) && (after == nil || afterCursor(j, after)) {
			out = append(out, clone(j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return afterCursor(out[b], store.CursorAfter(out[a]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// afterCursor reports whether j sorts after c in (updated_at, id) order.
func afterCursor(j *domain.ContentJob, c *store.StaleCursor) bool {
	if !j.UpdatedAt.Equal(c.UpdatedAt) {
		return j.UpdatedAt.After(c.UpdatedAt)
	}
	return bytes.Compare(j.ID[:], c.ID[:]) > 0
}

// Delete implements store.ContentJobStore.
func (m *MockContentJobStore) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.UserID != ownerID {
		return store.ErrContentNotFound
	}
	delete(m.jobs, id)
	return nil
}

// WithTx returns the same store; the mock has no transactions.
func (m *MockContentJobStore) WithTx(*sql.Tx) store.ContentJobStore {
	return m
}
