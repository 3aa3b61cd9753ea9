// Package observability wires the metrics and tracing collaborators:
// OpenTelemetry providers exporting over OTLP HTTP, and the metric
// instruments the dispatch pipeline reports to (call latency, circuit
// state transitions, cache hits and misses).
package observability
