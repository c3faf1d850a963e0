// Package gemini provides an implementation of the generation.Generator
// interface backed by Google's Gemini API.
//
// The adapter sends a single combined prompt per request and maps the API's
// failure modes onto the generation package's sentinel errors:
//
//   - safety blocks (prompt feedback or finish reason) become ErrContentBlocked
//   - empty candidates become ErrInvalidResponse
//   - 401/403 responses become ErrInvalidConfig
//   - 429 and 5xx responses become ErrTransientFailure
//
// Retries are not performed here; the job queue owns the retry policy.
package gemini
