// Package middleware provides the built-in pipeline middleware: circuit
// breaking, HTTP response caching, metric collection and distributed
// tracing. Middleware registered on a client factory wraps every dispatch
// in registration order, with the first-registered middleware outermost.
package middleware
