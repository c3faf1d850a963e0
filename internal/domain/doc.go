// Package domain contains the core business entities of the content
// generation service: content jobs, their status state machine and the users
// that own them. It is independent of storage, transport and provider code.
package domain
