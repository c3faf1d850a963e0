package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
)

// TypeContentGeneration is the Type of every job status event.
const TypeContentGeneration = "content-generation"

// TopicJobStatus is the shared topic all job status events are published on.
const TopicJobStatus = "job-status"

// DefaultBufferSize is the per-subscription channel capacity.
const DefaultBufferSize = 64

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Event reports a job's status change.
type Event struct {
	Type      string               `json:"type"`
	JobID     uuid.UUID            `json:"jobId"`
	UserID    uuid.UUID            `json:"userId"`
	ContentID uuid.UUID            `json:"contentId"`
	Status    domain.ContentStatus `json:"status"`
	Error     string               `json:"error,omitempty"`
}

// StatusEvent builds the event for job entering status. errMsg is only
// carried for failed jobs.
func StatusEvent(job *domain.ContentJob, status domain.ContentStatus, errMsg string) Event {
	e := Event{
		Type:      TypeContentGeneration,
		JobID:     job.JobID,
		UserID:    job.UserID,
		ContentID: job.ID,
		Status:    status,
	}
	if status == domain.ContentStatusFailed {
		e.Error = errMsg
	}
	return e
}

// Bus publishes events to topics and fans them out to subscribers.
type Bus interface {
	// Publish sends e to the current subscribers of topic.
	Publish(ctx context.Context, topic string, e Event) error

	// Subscribe starts receiving events published on topic after the call
	// returns. The subscription ends when Close is called or ctx is done.
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
}

// Subscription is a live stream of events from one topic.
type Subscription struct {
	events <-chan Event
	closer func()
}

// Events returns the receive channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closer()
}
