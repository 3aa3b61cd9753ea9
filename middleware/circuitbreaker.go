package middleware

import (
	"context"
	"errors"

	"github.com/mardiros/aioli/logger"
	"github.com/mardiros/aioli/pipeline"
	"github.com/mardiros/aioli/resilience"
)

// CircuitBreaker guards each endpoint with its own breaker. Calls rejected
// while the circuit is open return a KindCircuitOpen outcome without
// reaching the transport.
type CircuitBreaker struct {
	registry *resilience.Registry
	log      *logger.Logger
}

var _ pipeline.Middleware = (*CircuitBreaker)(nil)

// NewCircuitBreaker creates the middleware over a breaker registry.
func NewCircuitBreaker(registry *resilience.Registry, log *logger.Logger) *CircuitBreaker {
	if log == nil {
		log = logger.Nop()
	}
	return &CircuitBreaker{
		registry: registry,
		log:      log.WithComponent("circuit_breaker"),
	}
}

// Handle admits the call through the endpoint's breaker and records the
// outcome against it.
func (m *CircuitBreaker) Handle(ctx context.Context, req *pipeline.Request, next pipeline.Next) pipeline.Outcome {
	// A caller that already gave up must not count against the endpoint.
	if err := ctx.Err(); err != nil {
		return pipeline.Timeout(err)
	}

	endpoint := req.Endpoint.String()
	breaker := m.registry.Get(endpoint)
	if err := breaker.Allow(); err != nil {
		m.log.Warn("call rejected, circuit open", logger.Fields(
			logger.FieldEndpoint, endpoint,
			logger.FieldCorrelationID, req.CorrelationID,
		))
		return pipeline.CircuitOpen(err)
	}

	// Every admitted call reports exactly one result; the deferred neutral
	// release covers a panicking next so the probe slot cannot leak.
	recorded := false
	defer func() {
		if !recorded {
			breaker.OnNeutral()
		}
	}()

	out := next(ctx, req)
	switch {
	case tripsBreaker(out):
		breaker.OnFailure()
	case countsAsSuccess(out):
		breaker.OnSuccess()
	default:
		breaker.OnNeutral()
	}
	recorded = true
	return out
}

// tripsBreaker reports whether the outcome signals endpoint unhealthiness.
// Timeouts, transport failures and 5xx responses trip; client errors never
// do, and neither does a failure caused by the caller's own cancellation.
func tripsBreaker(out pipeline.Outcome) bool {
	switch out.Kind {
	case pipeline.KindTimeout, pipeline.KindTransport:
		return !errors.Is(out.Err, context.Canceled)
	case pipeline.KindHTTPError:
		var httpErr *pipeline.HTTPError
		if errors.As(out.Err, &httpErr) {
			return httpErr.IsServerError()
		}
		return out.Response != nil && out.Response.StatusCode >= 500
	}
	return false
}

// countsAsSuccess reports whether the outcome resets the failure streak.
// Resolution failures are discovery-side and leave the breaker untouched.
func countsAsSuccess(out pipeline.Outcome) bool {
	switch out.Kind {
	case pipeline.KindSuccess:
		return true
	case pipeline.KindHTTPError:
		return !tripsBreaker(out)
	}
	return false
}
