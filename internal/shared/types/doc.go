// Package types defines the shared contracts between the service registry,
// the providers, and the HTTP surface.
//
// A Service describes a provider and the Tools it exposes; a Result is the
// uniform success/data/error envelope every tool execution returns. Context
// carries the caller's session identity so providers can resolve per-session
// state (working directory, remote session) without reaching into the engine.
package types
