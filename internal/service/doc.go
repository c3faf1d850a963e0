// Package service contains the application use cases. It coordinates the
// content store, the job queue and the provider router for content jobs, and
// the user store and password verifier for accounts.
//
// Services return sentinel errors from internal/store and internal/domain
// unchanged for expected conditions (not found, conflict, validation) and
// wrap everything else in *ServiceError. The API layer maps both to HTTP
// status codes.
package service
