package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Status events published, by result.",
		},
		[]string{"result"},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		},
	)
)

func init() {
	register(eventsPublished, wsConnections)
}

// IncPublished counts a publish attempt; ok is false when the bus rejected it.
func IncPublished(ok bool) {
	if ok {
		eventsPublished.WithLabelValues("ok").Inc()
		return
	}
	eventsPublished.WithLabelValues("error").Inc()
}

// WSConnected tracks a connection opening.
func WSConnected() { wsConnections.Inc() }

// WSDisconnected tracks a connection closing.
func WSDisconnected() { wsConnections.Dec() }
