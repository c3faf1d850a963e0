// Package store defines the persistence contracts for content jobs and users.
// Implementations live under internal/platform; callers depend only on the
// interfaces here and on the shared error values.
package store
