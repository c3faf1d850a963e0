package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/events"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/metrics"
	"github.com/phrazzld/inkwell/internal/platform/logger"
	"github.com/phrazzld/inkwell/internal/queue"
	"github.com/phrazzld/inkwell/internal/redact"
	"github.com/phrazzld/inkwell/internal/store"
)

// Common errors
var (
	ErrNilStore     = errors.New("content store cannot be nil")
	ErrNilQueue     = errors.New("queue cannot be nil")
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilBus       = errors.New("event bus cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// GenerationTaskConfig tunes a GenerationTask.
type GenerationTaskConfig struct {
	// Topic is the bus topic status events are published on.
	Topic string

	// Heartbeat is how often the lease is extended while the provider call
	// runs. It must be shorter than the queue's lease TTL.
	Heartbeat time.Duration

	// RequestTimeout bounds one provider call. Zero means no bound beyond
	// the caller's context.
	RequestTimeout time.Duration
}

// GenerationTask executes one claimed attempt of a content job. It is
// stateless and safe for concurrent use by many workers.
type GenerationTask struct {
	store     store.ContentJobStore
	queue     queue.Queue
	generator generation.Generator
	bus       events.Bus
	config    GenerationTaskConfig
	logger    *slog.Logger
}

// NewGenerationTask creates a GenerationTask.
func NewGenerationTask(
	contentStore store.ContentJobStore,
	q queue.Queue,
	generator generation.Generator,
	bus events.Bus,
	config GenerationTaskConfig,
	logger *slog.Logger,
) (*GenerationTask, error) {
	switch {
	case contentStore == nil:
		return nil, ErrNilStore
	case q == nil:
		return nil, ErrNilQueue
	case generator == nil:
		return nil, ErrNilGenerator
	case bus == nil:
		return nil, ErrNilBus
	case logger == nil:
		return nil, ErrNilLogger
	}
	if config.Topic == "" {
		config.Topic = events.TopicJobStatus
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = queue.DefaultLeaseTTL / 3
	}

	return &GenerationTask{
		store:     contentStore,
		queue:     q,
		generator: generator,
		bus:       bus,
		config:    config,
		logger:    logger.With(slog.String("component", "generation_task")),
	}, nil
}

// Execute drives one attempt. The record moves to processing and a
// processing event goes out before the provider is called. Success and
// final failures are written through Finalize, the only terminal writer;
// earlier failures are handed back to the queue for a backoff retry and
// leave the record non-terminal. The returned error reports a queue
// operation that could not be completed; attempt failures are not errors.
func (t *GenerationTask) Execute(ctx context.Context, lease *queue.Lease) error {
	p := lease.Payload
	log := logger.FromContextOrDefault(ctx, t.logger).With(
		slog.String("job_id", p.JobID.String()),
		slog.String("content_id", p.ContentID.String()),
		slog.Int("attempt", lease.Attempt),
		slog.Int("max_attempts", lease.MaxAttempts),
	)
	ctx = logger.WithLogger(ctx, log)

	job, err := t.store.MarkProcessing(ctx, p.JobID)
	if errors.Is(err, store.ErrStaleAttempt) {
		log.InfoContext(ctx, "dropping task for deleted or superseded job")
		metrics.ObserveAttempt(metrics.OutcomeStale)
		return t.complete(ctx, lease)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to mark job processing", slog.String("error", redact.Error(err)))
		return t.fail(ctx, lease, nil, err)
	}

	t.publish(ctx, events.StatusEvent(job, domain.ContentStatusProcessing, ""))

	text, genErr := t.generate(ctx, lease)
	if genErr != nil {
		return t.fail(ctx, lease, job, genErr)
	}

	applied, err := t.store.Finalize(ctx, p.JobID, store.Completed(text))
	if err != nil {
		log.ErrorContext(ctx, "failed to persist generated content", slog.String("error", redact.Error(err)))
		return t.afterFinalizeError(ctx, lease, err)
	}
	if !applied {
		log.InfoContext(ctx, "job superseded during generation, discarding result")
		metrics.ObserveAttempt(metrics.OutcomeStale)
		return t.complete(ctx, lease)
	}

	log.InfoContext(ctx, "content generated", slog.Int("content_length", len(text)))
	metrics.ObserveAttempt(metrics.OutcomeSucceeded)
	metrics.IncFinished(string(domain.ContentStatusCompleted))
	t.publish(ctx, events.StatusEvent(job, domain.ContentStatusCompleted, ""))
	return t.complete(ctx, lease)
}

// generate calls the provider while a heartbeat keeps the lease alive. A
// lease lost mid-call is reported as queue.ErrLeaseLost, whatever the
// provider returned.
func (t *GenerationTask) generate(ctx context.Context, lease *queue.Lease) (string, error) {
	leaseCtx, cancelLease := context.WithCancelCause(ctx)
	defer cancelLease(nil)

	callCtx := leaseCtx
	if t.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(leaseCtx, t.config.RequestTimeout)
		defer cancel()
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t.heartbeat(leaseCtx, lease, stop, cancelLease)
	}()

	p := lease.Payload
	start := time.Now()
	text, err := t.generator.Generate(callCtx, generation.Request{
		Prompt:      p.Prompt,
		ContentType: p.ContentType,
		Provider:    p.Provider,
		Model:       p.Model,
	})
	metrics.ObserveProviderCall(string(p.Provider), time.Since(start), err == nil)

	close(stop)
	<-stopped
	if cause := context.Cause(leaseCtx); errors.Is(cause, queue.ErrLeaseLost) {
		return "", cause
	}
	return text, err
}

// heartbeat extends the lease until stop closes. Losing the lease cancels
// the provider call with queue.ErrLeaseLost: another worker now owns the
// attempt.
func (t *GenerationTask) heartbeat(ctx context.Context, lease *queue.Lease, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(t.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := t.queue.Extend(ctx, lease)
			if errors.Is(err, queue.ErrLeaseLost) {
				logger.FromContextOrDefault(ctx, t.logger).WarnContext(ctx, "lease lost during generation")
				cancel(queue.ErrLeaseLost)
				return
			}
			if err != nil {
				logger.FromContextOrDefault(ctx, t.logger).WarnContext(ctx, "lease heartbeat failed",
					slog.String("error", redact.Error(err)))
			}
		}
	}
}

// fail handles an attempt failure. job is nil when the record could not be
// loaded.
func (t *GenerationTask) fail(ctx context.Context, lease *queue.Lease, job *domain.ContentJob, cause error) error {
	log := logger.FromContextOrDefault(ctx, t.logger)

	if errors.Is(cause, queue.ErrLeaseLost) || ctx.Err() != nil {
		// Shutdown or a reclaimed lease: the queue redelivers the attempt.
		log.WarnContext(ctx, "attempt abandoned", slog.String("error", redact.Error(cause)))
		return nil
	}

	permanent := generation.IsPermanent(cause)
	if !lease.Final() && !permanent {
		delay, err := t.queue.Retry(ctx, lease, cause)
		if err != nil {
			return t.queueError(ctx, "retry", err)
		}
		log.WarnContext(ctx, "attempt failed, retry scheduled",
			slog.Duration("retry_in", delay),
			slog.String("error", redact.Error(cause)))
		metrics.ObserveAttempt(metrics.OutcomeRetried)
		return nil
	}

	message := failureMessage(cause)
	log.ErrorContext(ctx, "job failed",
		slog.Bool("permanent", permanent),
		slog.String("error", redact.Error(cause)))

	applied, err := t.store.Finalize(ctx, lease.Payload.JobID, store.Failed(message))
	if err != nil {
		log.ErrorContext(ctx, "failed to persist job failure", slog.String("error", redact.Error(err)))
		return t.afterFinalizeError(ctx, lease, err)
	}

	metrics.ObserveAttempt(metrics.OutcomeFailed)
	if applied {
		metrics.IncFinished(string(domain.ContentStatusFailed))
		if job != nil {
			t.publish(ctx, events.StatusEvent(job, domain.ContentStatusFailed, message))
		} else {
			t.publish(ctx, events.Event{
				Type:      events.TypeContentGeneration,
				JobID:     lease.Payload.JobID,
				UserID:    lease.Payload.UserID,
				ContentID: lease.Payload.ContentID,
				Status:    domain.ContentStatusFailed,
				Error:     message,
			})
		}
	}
	return t.complete(ctx, lease)
}

// afterFinalizeError retries while budget remains; otherwise the task is
// completed and the record is left to the reconciliation sweep.
func (t *GenerationTask) afterFinalizeError(ctx context.Context, lease *queue.Lease, cause error) error {
	if !lease.Final() {
		if _, err := t.queue.Retry(ctx, lease, cause); err != nil {
			return t.queueError(ctx, "retry", err)
		}
		metrics.ObserveAttempt(metrics.OutcomeRetried)
		return nil
	}
	metrics.ObserveAttempt(metrics.OutcomeFailed)
	return t.complete(ctx, lease)
}

func (t *GenerationTask) complete(ctx context.Context, lease *queue.Lease) error {
	if err := t.queue.Complete(ctx, lease); err != nil {
		return t.queueError(ctx, "complete", err)
	}
	return nil
}

func (t *GenerationTask) queueError(ctx context.Context, op string, err error) error {
	if errors.Is(err, queue.ErrLeaseLost) {
		logger.FromContextOrDefault(ctx, t.logger).WarnContext(ctx, "lease lost before "+op)
		return nil
	}
	return fmt.Errorf("queue %s failed: %w", op, err)
}

// publish is best effort: failures are logged and counted.
func (t *GenerationTask) publish(ctx context.Context, e events.Event) {
	err := t.bus.Publish(ctx, t.config.Topic, e)
	metrics.IncPublished(err == nil)
	if err != nil {
		logger.FromContextOrDefault(ctx, t.logger).WarnContext(ctx, "failed to publish status event",
			slog.String("status", string(e.Status)),
			slog.String("error", redact.Error(err)))
	}
}

// failureMessage is the error text stored on a failed record and shown to
// its owner.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, generation.ErrContentBlocked):
		return "content blocked by provider safety filters"
	case errors.Is(err, generation.ErrInvalidConfig):
		return "generation provider is not configured"
	case errors.Is(err, generation.ErrInvalidResponse):
		return "provider returned an empty or invalid response"
	case errors.Is(err, generation.ErrTransientFailure), errors.Is(err, generation.ErrGenerationFailed):
		return "content generation failed"
	default:
		return "content generation failed: " + redact.Error(err)
	}
}
