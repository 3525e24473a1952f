// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Worker goroutines (stream readers, waiters) log through the same logger;
// per-session context is attached as structured fields so a session's
// lifecycle can be traced across stdout/stderr/waiter workers.
package logging
