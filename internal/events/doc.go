// Package events carries asynchronous notifications from the execution
// engines to their consumers.
//
// The engines never talk to a delivery mechanism directly; they write to a
// Sink. The Bus implementation fans events out to any number of subscribers
// (the WebSocket handler being the usual one) with per-subscriber buffering,
// so a stalled UI connection cannot block a stream-reader goroutine.
//
// Ordering: events published from a single goroutine arrive in publish order
// on every subscriber channel. Events from different workers (stdout vs.
// stderr vs. waiter) have no cross-stream ordering guarantee.
package events
