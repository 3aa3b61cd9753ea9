package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/mardiros/aioli/observability"
	"github.com/mardiros/aioli/pipeline"
)

// Tracing opens a client span around each dispatch and injects the trace
// context into the outgoing headers so the upstream service can join it.
type Tracing struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

var _ pipeline.Middleware = (*Tracing)(nil)

// NewTracing creates the middleware on the global tracer and propagator.
func NewTracing() *Tracing {
	return &Tracing{
		tracer:     observability.Tracer(),
		propagator: observability.Propagator(),
	}
}

// Handle implements pipeline.Middleware.
func (m *Tracing) Handle(ctx context.Context, req *pipeline.Request, next pipeline.Next) pipeline.Outcome {
	ctx, span := m.tracer.Start(ctx, req.Method+" "+req.Endpoint.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("peer.service", req.Endpoint.Service),
			attribute.String("correlation.id", req.CorrelationID),
		),
	)
	defer span.End()

	m.propagator.Inject(ctx, requestCarrier{req: req})

	out := next(ctx, req)
	if out.Response != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", out.Response.StatusCode))
	}
	if out.IsSuccess() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, out.Kind.String())
		if out.Err != nil {
			span.RecordError(out.Err)
		}
	}
	return out
}

// requestCarrier adapts the outbound envelope to the propagation API.
type requestCarrier struct {
	req *pipeline.Request
}

var _ propagation.TextMapCarrier = requestCarrier{}

func (c requestCarrier) Get(key string) string {
	return c.req.Header(key)
}

func (c requestCarrier) Set(key, value string) {
	c.req.SetHeader(key, value)
}

func (c requestCarrier) Keys() []string {
	headers := c.req.Headers()
	keys := make([]string, 0, len(headers))
	for name := range headers {
		keys = append(keys, name)
	}
	return keys
}
