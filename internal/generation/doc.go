// Package generation defines the boundary to external text generation
// providers. A Generator turns a prompt and content type into text; the
// Router picks a provider per request and normalizes the model name, and
// NewLimited caps how many provider calls run at once.
package generation
