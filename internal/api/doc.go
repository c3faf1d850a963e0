// Package api holds the HTTP handlers for the auth and content endpoints.
// Handlers decode and validate requests, call the service layer and map
// service errors to status codes with MapErrorToStatusCode. Error bodies
// are {"error": ..., "trace_id": ...} with sanitized messages only.
package api
