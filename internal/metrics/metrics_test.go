package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(jobsSubmitted.WithLabelValues("ad-copy"))
	IncSubmitted(" Ad-Copy ")
	assert.Equal(t, before+1, testutil.ToFloat64(jobsSubmitted.WithLabelValues("ad-copy")))

	before = testutil.ToFloat64(queueRequeued.WithLabelValues(ReasonLeaseExpired))
	AddRequeued(ReasonLeaseExpired, 0)
	AddRequeued(ReasonLeaseExpired, 3)
	assert.Equal(t, before+3, testutil.ToFloat64(queueRequeued.WithLabelValues(ReasonLeaseExpired)))

	before = testutil.ToFloat64(eventsPublished.WithLabelValues("error"))
	IncPublished(false)
	assert.Equal(t, before+1, testutil.ToFloat64(eventsPublished.WithLabelValues("error")))

	WSConnected()
	WSConnected()
	WSDisconnected()
	assert.Equal(t, float64(1), testutil.ToFloat64(wsConnections))
	WSDisconnected()
}

func TestObserveProviderCall(t *testing.T) {
	ObserveProviderCall("gemini", 1500*time.Millisecond, true)
	assert.Equal(t, 1, testutil.CollectAndCount(providerLatency, "inkwell_provider_latency_seconds"))
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
