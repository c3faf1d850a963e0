// Package gateway relays job status events to websocket subscribers.
//
// A connection authenticates with the same access token as the HTTP API,
// then joins and leaves per-job groups with subscribe-job and
// unsubscribe-job frames. Events from the status bus are forwarded only to
// connections in the event's job group that belong to the job's owner.
// There is no history: a client that subscribes after an event fired polls
// the status endpoint instead.
package gateway
