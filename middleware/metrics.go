package middleware

import (
	"context"
	"time"

	"github.com/mardiros/aioli/observability"
	"github.com/mardiros/aioli/pipeline"
)

// Metrics records call volume and latency per endpoint, labeled by the
// outcome kind.
type Metrics struct {
	metrics *observability.Metrics
}

var _ pipeline.Middleware = (*Metrics)(nil)

// NewMetrics creates the middleware over a set of instruments.
func NewMetrics(metrics *observability.Metrics) *Metrics {
	return &Metrics{metrics: metrics}
}

// Handle implements pipeline.Middleware.
func (m *Metrics) Handle(ctx context.Context, req *pipeline.Request, next pipeline.Next) pipeline.Outcome {
	start := time.Now()
	out := next(ctx, req)
	m.metrics.RecordCall(ctx, req.Endpoint.String(), out.Kind.String(), time.Since(start))
	if out.Kind == pipeline.KindCircuitOpen {
		m.metrics.RecordCircuitRejection(ctx, req.Endpoint.String())
	}
	return out
}
