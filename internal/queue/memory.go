package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryTask struct {
	payload     Payload
	attempt     int
	maxAttempts int
	runAt       time.Time
	token       string
	deadline    time.Time
	leased      bool
	lastError   string
}

// MemoryQueue is a single-process Queue with the same delay, lease and retry
// semantics as RedisQueue.
type MemoryQueue struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*memoryTask
	opts  Options
	now   func() time.Time
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{
		tasks: make(map[uuid.UUID]*memoryTask),
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
}

// SetClock replaces the queue's time source.
func (q *MemoryQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Len returns the number of tasks held, leased or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Enqueue implements Queue.Enqueue.
func (q *MemoryQueue) Enqueue(_ context.Context, payload Payload, delay time.Duration) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.tasks[payload.JobID]; ok {
		return ErrDuplicateTask
	}
	q.tasks[payload.JobID] = &memoryTask{
		payload:     payload,
		maxAttempts: q.opts.MaxAttempts,
		runAt:       q.now().Add(delay),
	}
	return nil
}

// Claim implements Queue.Claim.
func (q *MemoryQueue) Claim(ctx context.Context) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var next *memoryTask
	for _, t := range q.tasks {
		if t.leased || t.runAt.After(now) {
			continue
		}
		if next == nil || t.runAt.Before(next.runAt) {
			next = t
		}
	}
	if next == nil {
		return nil, ErrNoTask
	}

	if err := next.payload.Validate(); err != nil {
		delete(q.tasks, next.payload.JobID)
		return nil, err
	}

	next.attempt++
	next.leased = true
	next.token = uuid.NewString()
	next.deadline = now.Add(q.opts.LeaseTTL)

	return &Lease{
		Payload:     next.payload,
		Attempt:     next.attempt,
		MaxAttempts: next.maxAttempts,
		Token:       next.token,
		Deadline:    next.deadline,
	}, nil
}

// leasedTask returns the task held by lease, or ErrLeaseLost. Callers hold q.mu.
func (q *MemoryQueue) leasedTask(lease *Lease) (*memoryTask, error) {
	t, ok := q.tasks[lease.Payload.JobID]
	if !ok || !t.leased || t.token != lease.Token {
		return nil, ErrLeaseLost
	}
	return t, nil
}

// Extend implements Queue.Extend.
func (q *MemoryQueue) Extend(_ context.Context, lease *Lease) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.leasedTask(lease)
	if err != nil {
		return err
	}
	t.deadline = q.now().Add(q.opts.LeaseTTL)
	lease.Deadline = t.deadline
	return nil
}

// Retry implements Queue.Retry.
func (q *MemoryQueue) Retry(_ context.Context, lease *Lease, cause error) (time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.leasedTask(lease)
	if err != nil {
		return 0, err
	}
	delay := q.opts.Backoff.Delay(lease.Attempt)
	t.leased = false
	t.token = ""
	t.lastError = causeText(cause)
	t.runAt = q.now().Add(delay)
	return delay, nil
}

// Complete implements Queue.Complete.
func (q *MemoryQueue) Complete(_ context.Context, lease *Lease) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.leasedTask(lease); err != nil {
		return err
	}
	delete(q.tasks, lease.Payload.JobID)
	return nil
}

// RequeueExpired implements Queue.RequeueExpired.
func (q *MemoryQueue) RequeueExpired(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	moved := 0
	for id, t := range q.tasks {
		if !t.leased || t.deadline.After(now) {
			continue
		}
		if t.attempt > t.maxAttempts {
			delete(q.tasks, id)
			continue
		}
		t.leased = false
		t.token = ""
		t.runAt = now
		moved++
	}
	return moved, nil
}
