// Package queue provides delayed, leased and retried delivery of content
// generation tasks. Each task is keyed by its job ID, which doubles as the
// dedup key and the lease key.
package queue
