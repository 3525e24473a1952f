// Package session is the single source of truth for per-tab execution state.
//
// Each terminal tab owns one State keyed by a caller-supplied session id:
// its working directory, the pid and handles of its foreground process, and
// whether that process is an interactive SSH session whose stdin accepts
// forwarded commands. A registry-wide mutex serializes all access; the lock
// is held only for field copies and assignments, never across I/O, so one
// session's blocking wait can never stall another session's dispatch.
//
// Process and stdin handles are individually lock-guarded so the waiter
// goroutine (blocking on exit) and a forwarding goroutine (writing stdin)
// never contend on the same mutex.
package session
