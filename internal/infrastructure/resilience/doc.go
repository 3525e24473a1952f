// Package resilience provides a circuit breaker for outbound calls.
//
// The model-serving endpoint is the only network dependency of this backend;
// the breaker keeps a flapping or unreachable endpoint from stalling the
// assistant surface while terminal execution continues unaffected.
package resilience
