// Package server assembles the application: configuration, logging, metrics,
// the event bus, the execution engines and the Gin router with its
// middleware stack.
package server
