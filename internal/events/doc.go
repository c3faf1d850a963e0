// Package events carries job status changes from workers to live
// subscribers. Delivery is best-effort and at-most-once: there is no history,
// and a subscriber that falls behind loses events rather than slowing the
// publisher.
package events
