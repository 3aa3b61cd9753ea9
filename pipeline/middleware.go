package pipeline

import "context"

// Next invokes the remainder of the chain, down to the transport call when
// it is the innermost link.
type Next func(ctx context.Context, req *Request) Outcome

// Middleware wraps a dispatch with cross-cutting behavior. An
// implementation may pass through unmodified, mutate the request before
// calling next, short-circuit by returning an Outcome without calling next,
// or post-process the Outcome after next returns.
type Middleware interface {
	Handle(ctx context.Context, req *Request, next Next) Outcome
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, req *Request, next Next) Outcome

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, req *Request, next Next) Outcome {
	return f(ctx, req, next)
}

// Chain composes middleware around a terminal call. The first middleware in
// the slice becomes the outermost wrapper, so registration order is the
// execution order seen by the caller. Composition is an explicit fold over
// the slice; it does not depend on map iteration or any other
// non-deterministic ordering.
func Chain(terminal Next, middleware ...Middleware) Next {
	next := terminal
	for i := len(middleware) - 1; i >= 0; i-- {
		m, inner := middleware[i], next
		next = func(ctx context.Context, req *Request) Outcome {
			return m.Handle(ctx, req, inner)
		}
	}
	return next
}
