package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/store"
)

// ErrNotConfigured is returned by constructors when a required dependency
// is missing.
var ErrNotConfigured = errors.New("service dependency not configured")

// ServiceError wraps an unexpected failure of a service operation with
// context. Expected conditions are returned as sentinels instead.
type ServiceError struct {
	// Operation is the operation that failed (e.g. "submit", "regenerate")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err with operation context. Not-found, conflict and
// validation errors are returned as they are so the API layer can map them.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrDuplicate) ||
		errors.Is(err, store.ErrInvalidEntity) ||
		errors.Is(err, domain.ErrValidation) {
		return err
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// ErrProviderUnavailable is returned when a request names a provider that
// this deployment has no credentials for.
var ErrProviderUnavailable = errors.New("generation provider not available")
