// Package resilience implements the circuit-breaker state machine that
// protects callers from cascading failure, and a per-endpoint registry of
// breakers created lazily on first call.
//
// Each breaker moves between three states: closed (calls pass through,
// consecutive failures are counted), open (calls are rejected immediately
// until the recovery timeout elapses), and half-open (exactly one probe
// call is admitted at a time; its result decides the next state).
package resilience
