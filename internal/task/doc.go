// Package task runs the background side of content generation: a pool of
// workers claiming leases from the job queue, the per-attempt state machine
// that drives a record to a terminal status, and a monitor that reconciles
// the queue with the record store after crashes.
package task
