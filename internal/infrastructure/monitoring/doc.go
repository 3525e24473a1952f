// Package monitoring provides Prometheus metrics for the backend.
//
// Counters and gauges cover the three execution surfaces (piped commands,
// SSH forwarding, PTY sessions) plus the HTTP/WebSocket edge. Metrics are
// registered once via promauto at construction; /metrics serves the standard
// Prometheus text exposition.
package monitoring
