// Package pipeline defines the request-dispatch pipeline primitives: the
// request/response envelope passed through the middleware chain, the
// endpoint key that scopes circuit-breaker and cache state, the Outcome
// value every dispatch returns, and the ordered middleware composer.
//
// Middleware execute in registration order as seen from the caller: the
// first registered middleware is the outermost wrapper, observing the
// request first and the outcome last.
package pipeline
