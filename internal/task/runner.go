package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/inkwell/internal/metrics"
	"github.com/phrazzld/inkwell/internal/queue"
	"github.com/phrazzld/inkwell/internal/redact"
	"github.com/phrazzld/inkwell/internal/store"
)

// Executor runs one claimed attempt.
type Executor interface {
	Execute(ctx context.Context, lease *queue.Lease) error
}

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers claim tasks
	WorkerCount int

	// PollInterval is how long an idle worker waits before claiming again
	PollInterval time.Duration

	// StuckAfter is how long a record may stay non-terminal without an
	// update before the sweep re-enqueues it
	StuckAfter time.Duration

	// SweepInterval defines how often the monitor reconciles the queue
	// and the record store
	SweepInterval time.Duration

	// SweepBatch caps the stale records examined per sweep. Successive
	// sweeps page through the stale set, so records whose task is still
	// queued cannot hide the ones behind them.
	SweepBatch int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:   2,
		PollInterval:  time.Second,
		StuckAfter:    15 * time.Minute,
		SweepInterval: time.Minute,
		SweepBatch:    100,
	}
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	d := DefaultRunnerConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = d.StuckAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = d.SweepBatch
	}
	return c
}

// Runner manages background task processing
type Runner struct {
	queue    queue.Queue
	store    store.ContentJobStore
	executor Executor
	config   RunnerConfig
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sweepMu sync.Mutex
	cursor  *store.StaleCursor
}

// NewRunner creates a new Runner
func NewRunner(
	q queue.Queue,
	contentStore store.ContentJobStore,
	executor Executor,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		queue:    q,
		store:    contentStore,
		executor: executor,
		config:   config.withDefaults(),
		logger:   logger.With(slog.String("component", "task_runner")),
		now:      time.Now,
	}
}

// Start launches the workers and the monitor. They run until Stop is called
// or ctx is cancelled. An initial sweep runs before the workers start so
// work orphaned by a previous process is picked up immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return errors.New("task runner already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.Sweep(ctx)

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.wg.Add(1)
	go r.monitor(ctx)

	r.logger.InfoContext(ctx, "task runner started",
		slog.Int("workers", r.config.WorkerCount),
		slog.Duration("poll_interval", r.config.PollInterval),
		slog.Duration("sweep_interval", r.config.SweepInterval))
	return nil
}

// Stop gracefully shuts down the runner and waits for in-flight attempts.
// Attempts interrupted by the shutdown are redelivered once their lease
// expires.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// worker claims and executes tasks until ctx is cancelled.
func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	log := r.logger.With(slog.Int("worker_id", id))
	log.DebugContext(ctx, "starting worker")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.DebugContext(ctx, "stopping worker")
			return
		case <-timer.C:
		}

		if r.processNext(ctx, log) {
			timer.Reset(0)
		} else {
			timer.Reset(r.config.PollInterval)
		}
	}
}

// processNext claims and runs one task. It reports whether a task was
// claimed, so a busy worker drains the queue without waiting.
func (r *Runner) processNext(ctx context.Context, log *slog.Logger) bool {
	lease, err := r.queue.Claim(ctx)
	if errors.Is(err, queue.ErrNoTask) {
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			log.ErrorContext(ctx, "failed to claim task", slog.String("error", redact.Error(err)))
		}
		return false
	}

	if err := r.executor.Execute(ctx, lease); err != nil {
		log.ErrorContext(ctx, "task execution failed",
			slog.String("job_id", lease.Payload.JobID.String()),
			slog.String("error", redact.Error(err)))
	}
	return true
}

// monitor periodically reconciles the queue with the record store.
func (r *Runner) monitor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep makes expired leases due again, then re-enqueues records that have
// been non-terminal for longer than StuckAfter. A record whose task is still
// in the queue is left alone. Each sweep examines one batch, continuing
// where the previous sweep stopped and wrapping around after a short batch.
func (r *Runner) Sweep(ctx context.Context) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	moved, err := r.queue.RequeueExpired(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to requeue expired leases", slog.String("error", redact.Error(err)))
	} else if moved > 0 {
		r.logger.InfoContext(ctx, "requeued expired leases", slog.Int("count", moved))
		metrics.AddRequeued(metrics.ReasonLeaseExpired, moved)
	}

	staleBefore := r.now().Add(-r.config.StuckAfter)
	stale, err := r.store.ListStale(ctx, staleBefore, r.cursor, r.config.SweepBatch)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list stale jobs", slog.String("error", redact.Error(err)))
		return
	}
	if len(stale) < r.config.SweepBatch {
		r.cursor = nil
	} else {
		r.cursor = store.CursorAfter(stale[len(stale)-1])
	}

	requeued := 0
	for _, job := range stale {
		ok, err := r.requeueStale(ctx, queue.PayloadFor(job), staleBefore)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to requeue stale job",
				slog.String("job_id", job.JobID.String()),
				slog.String("error", redact.Error(err)))
			continue
		}
		if ok {
			requeued++
		}
	}
	if requeued > 0 {
		r.logger.InfoContext(ctx, "requeued stale jobs", slog.Int("count", requeued))
		metrics.AddRequeued(metrics.ReasonStaleRecord, requeued)
	}
}

func (r *Runner) requeueStale(ctx context.Context, p queue.Payload, staleBefore time.Time) (bool, error) {
	err := r.queue.Enqueue(ctx, p, 0)
	if errors.Is(err, queue.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.store.RequeueStale(ctx, p.JobID, staleBefore)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, lease *queue.Lease) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, lease *queue.Lease) error {
	return f(ctx, lease)
}
