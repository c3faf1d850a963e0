package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt outcomes recorded by ObserveAttempt.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

// Requeue reasons recorded by IncRequeued.
const (
	ReasonLeaseExpired = "lease_expired"
	ReasonStaleRecord  = "stale_record"
)

var (
	jobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Generation jobs accepted, by content type.",
		},
		[]string{"content_type"},
	)

	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		},
		[]string{"status"},
	)

	jobAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_attempts_total",
			Help:      "Worker attempts by outcome.",
		},
		[]string{"outcome"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of generation provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider", "success"},
	)

	queueRequeued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_requeued_total",
			Help:      "Tasks put back on the queue by the reconciliation sweep.",
		},
		[]string{"reason"},
	)
)

func init() {
	register(jobsSubmitted, jobsFinished, jobAttempts, providerLatency, queueRequeued)
}

// IncSubmitted counts an accepted job.
func IncSubmitted(contentType string) {
	jobsSubmitted.WithLabelValues(norm(contentType)).Inc()
}

// IncFinished counts a terminal status write.
func IncFinished(status string) {
	jobsFinished.WithLabelValues(norm(status)).Inc()
}

// ObserveAttempt counts one worker attempt.
func ObserveAttempt(outcome string) {
	jobAttempts.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall records the latency of one provider call.
func ObserveProviderCall(provider string, elapsed time.Duration, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	providerLatency.WithLabelValues(norm(provider), label).Observe(elapsed.Seconds())
}

// AddRequeued counts tasks moved back to the queue.
func AddRequeued(reason string, n int) {
	if n > 0 {
		queueRequeued.WithLabelValues(reason).Add(float64(n))
	}
}
