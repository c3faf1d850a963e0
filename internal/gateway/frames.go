package gateway

import (
	"encoding/json"

	"github.com/phrazzld/inkwell/internal/events"
)

// Client actions.
const (
	ActionSubscribe   = "subscribe-job"
	ActionUnsubscribe = "unsubscribe-job"
)

// Server event names.
const (
	EventJobStatus    = "job-status"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
)

type inboundFrame struct {
	Action string `json:"action"`
	JobID  string `json:"jobId"`
}

// OutboundFrame is every message the gateway sends.
type OutboundFrame struct {
	Event string        `json:"event"`
	JobID string        `json:"jobId,omitempty"`
	Data  *events.Event `json:"data,omitempty"`
	Error string        `json:"error,omitempty"`
}

func encodeFrame(f OutboundFrame) []byte {
	// OutboundFrame holds only strings and an events.Event, which always marshal.
	data, _ := json.Marshal(f)
	return data
}
