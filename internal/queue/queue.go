package queue

import (
	"context"
	"errors"
	"time"
)

// Queue errors.
var (
	// ErrDuplicateTask is returned by Enqueue when a task with the same job ID
	// is already queued or in flight.
	ErrDuplicateTask = errors.New("task already enqueued")

	// ErrNoTask is returned by Claim when no task is due.
	ErrNoTask = errors.New("no task due")

	// ErrLeaseLost is returned when a lease was reclaimed after it expired.
	ErrLeaseLost = errors.New("lease lost")

	// ErrInvalidPayload is returned when a payload fails schema validation.
	ErrInvalidPayload = errors.New("invalid task payload")
)

// Default queue settings.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 5 * time.Second
	DefaultLeaseTTL    = 2 * time.Minute
)

// Lease is a worker's exclusive claim on one attempt of a task. The job ID is
// the lease key: at most one live lease exists per job ID.
type Lease struct {
	Payload     Payload
	Attempt     int
	MaxAttempts int
	Token       string
	Deadline    time.Time
}

// Final reports whether this attempt is the last one in the budget.
func (l *Lease) Final() bool {
	return l.Attempt >= l.MaxAttempts
}

// Queue schedules generation tasks with delay, lease and retry semantics.
type Queue interface {
	// Enqueue schedules payload to become due after delay.
	Enqueue(ctx context.Context, payload Payload, delay time.Duration) error

	// Claim leases the earliest due task and counts the attempt.
	Claim(ctx context.Context) (*Lease, error)

	// Extend pushes the lease deadline forward by the lease TTL.
	Extend(ctx context.Context, lease *Lease) error

	// Retry releases the lease and reschedules the task after the backoff
	// for this attempt. It returns the delay applied.
	Retry(ctx context.Context, lease *Lease, cause error) (time.Duration, error)

	// Complete removes the task and its lease.
	Complete(ctx context.Context, lease *Lease) error

	// RequeueExpired makes tasks whose lease expired due again and returns
	// how many were moved.
	RequeueExpired(ctx context.Context) (int, error)
}

// Options configure a queue implementation.
type Options struct {
	MaxAttempts int
	LeaseTTL    time.Duration
	Backoff     Backoff
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = DefaultLeaseTTL
	}
	if o.Backoff == nil {
		o.Backoff = NewExponential(DefaultBackoffBase, 0)
	}
	return o
}

func causeText(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
