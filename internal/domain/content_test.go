package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContentJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	job, err := NewContentJob(userID, "  Launch of product X  ", ContentTypeAdCopy, ProviderGemini, "gemini-2.5-flash")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.NotEqual(t, uuid.Nil, job.JobID)
	assert.NotEqual(t, job.ID, job.JobID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, "Launch of product X", job.Prompt)
	assert.Equal(t, ContentStatusPending, job.Status)
	assert.Empty(t, job.GeneratedContent)
	assert.Empty(t, job.ErrorMessage)
	assert.NotNil(t, job.Tags)
	assert.False(t, job.IsTerminal())
}

func TestNewContentJob_UniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 100; i++ {
		job, err := NewContentJob(uuid.New(), "prompt", ContentTypeBlogPost, ProviderOpenAI, "gpt-3.5-turbo")
		require.NoError(t, err)
		require.False(t, seen[job.JobID], "duplicate job id")
		seen[job.JobID] = true
	}
}

func TestContentJobValidate(t *testing.T) {
	t.Parallel()

	valid := func() ContentJob {
		return ContentJob{
			ID:          uuid.New(),
			JobID:       uuid.New(),
			UserID:      uuid.New(),
			Prompt:      "prompt",
			ContentType: ContentTypeBlogPostOutline,
			Provider:    ProviderGemini,
			Model:       "gemini-2.5-flash",
			Status:      ContentStatusPending,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ContentJob)
		wantErr error
	}{
		{name: "valid pending", mutate: func(*ContentJob) {}},
		{name: "missing id", mutate: func(c *ContentJob) { c.ID = uuid.Nil }, wantErr: ErrEmptyContentID},
		{name: "missing job id", mutate: func(c *ContentJob) { c.JobID = uuid.Nil }, wantErr: ErrEmptyJobID},
		{name: "missing user", mutate: func(c *ContentJob) { c.UserID = uuid.Nil }, wantErr: ErrEmptyContentUserID},
		{name: "empty prompt", mutate: func(c *ContentJob) { c.Prompt = "" }, wantErr: ErrEmptyPrompt},
		{
			name:    "prompt too long",
			mutate:  func(c *ContentJob) { c.Prompt = strings.Repeat("a", MaxPromptLength+1) },
			wantErr: ErrPromptTooLong,
		},
		{
			name:   "prompt at limit in multibyte runes",
			mutate: func(c *ContentJob) { c.Prompt = strings.Repeat("é", MaxPromptLength) },
		},
		{name: "bad content type", mutate: func(c *ContentJob) { c.ContentType = "poem" }, wantErr: ErrInvalidContentType},
		{name: "bad provider", mutate: func(c *ContentJob) { c.Provider = "claude" }, wantErr: ErrInvalidProvider},
		{name: "bad status", mutate: func(c *ContentJob) { c.Status = "done" }, wantErr: ErrInvalidStatus},
		{
			name: "completed with content",
			mutate: func(c *ContentJob) {
				c.Status = ContentStatusCompleted
				c.GeneratedContent = "text"
			},
		},
		{
			name:    "completed without content",
			mutate:  func(c *ContentJob) { c.Status = ContentStatusCompleted },
			wantErr: ErrContentWithoutState,
		},
		{
			name:    "content while processing",
			mutate:  func(c *ContentJob) { c.Status = ContentStatusProcessing; c.GeneratedContent = "x" },
			wantErr: ErrContentWithoutState,
		},
		{
			name:    "failed without message",
			mutate:  func(c *ContentJob) { c.Status = ContentStatusFailed },
			wantErr: ErrErrorWithoutState,
		},
		{
			name:    "error message while queued",
			mutate:  func(c *ContentJob) { c.Status = ContentStatusQueued; c.ErrorMessage = "boom" },
			wantErr: ErrErrorWithoutState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := valid()
			tt.mutate(&job)
			err := job.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestContentStatusTransitions(t *testing.T) {
	t.Parallel()

	assert.True(t, ContentStatusPending.CanTransitionTo(ContentStatusQueued))
	assert.True(t, ContentStatusQueued.CanTransitionTo(ContentStatusProcessing))
	assert.True(t, ContentStatusProcessing.CanTransitionTo(ContentStatusProcessing))
	assert.True(t, ContentStatusProcessing.CanTransitionTo(ContentStatusCompleted))
	assert.True(t, ContentStatusProcessing.CanTransitionTo(ContentStatusFailed))

	for _, next := range ContentStatuses() {
		assert.False(t, ContentStatusCompleted.CanTransitionTo(next), "completed -> %s", next)
		assert.False(t, ContentStatusFailed.CanTransitionTo(next), "failed -> %s", next)
		assert.False(t, next.CanTransitionTo(ContentStatusPending), "%s -> pending", next)
	}
}

func TestContentTypes(t *testing.T) {
	t.Parallel()

	assert.Len(t, ContentTypes(), 6)
	for _, ct := range ContentTypes() {
		assert.True(t, ct.IsValid())
	}
	assert.False(t, ContentType("haiku").IsValid())
	assert.True(t, ProviderOpenAI.IsValid())
	assert.False(t, Provider("").IsValid())
}
