package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the consuming service.
	ServiceName string `mapstructure:"service_name"`
	// ServiceVersion is the version of the consuming service.
	ServiceVersion string `mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g. "localhost:4318").
	Endpoint string `mapstructure:"endpoint"`
	// Insecure allows plain-HTTP export (for development).
	Insecure bool `mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider. Shut the
// provider down on application exit.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the framework meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(tracerName)
}

// Metrics holds the instruments the dispatch pipeline reports to: call
// latency and volume, circuit-breaker activity, and cache effectiveness.
type Metrics struct {
	callTotal          metric.Int64Counter
	callDuration       metric.Float64Histogram
	circuitState       metric.Int64Gauge
	circuitTransitions metric.Int64Counter
	circuitRejections  metric.Int64Counter
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
}

// NewMetrics creates the metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	callTotal, err := meter.Int64Counter("client.call.total",
		metric.WithDescription("Total dispatched calls by endpoint and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.call.total counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("client.call.duration",
		metric.WithDescription("Duration of dispatched calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.call.duration histogram: %w", err)
	}

	circuitState, err := meter.Int64Gauge("client.circuit.state",
		metric.WithDescription("Circuit state per endpoint (0 closed, 1 half-open, 2 open)"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.circuit.state gauge: %w", err)
	}

	circuitTransitions, err := meter.Int64Counter("client.circuit.transitions",
		metric.WithDescription("Circuit state transitions by endpoint"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.circuit.transitions counter: %w", err)
	}

	circuitRejections, err := meter.Int64Counter("client.circuit.rejections",
		metric.WithDescription("Calls rejected without a transport attempt"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.circuit.rejections counter: %w", err)
	}

	cacheHits, err := meter.Int64Counter("client.cache.hits",
		metric.WithDescription("Responses served from the HTTP cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.cache.hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter("client.cache.misses",
		metric.WithDescription("Cacheable requests that reached the transport"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating client.cache.misses counter: %w", err)
	}

	return &Metrics{
		callTotal:          callTotal,
		callDuration:       callDuration,
		circuitState:       circuitState,
		circuitTransitions: circuitTransitions,
		circuitRejections:  circuitRejections,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}, nil
}

// RecordCall records one completed dispatch.
func (m *Metrics) RecordCall(ctx context.Context, endpoint, outcome string, duration time.Duration) {
	m.callTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordCircuitTransition records a breaker state change.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, endpoint, from, to string, gauge int64) {
	m.circuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("from", from),
		attribute.String("to", to),
	))
	m.circuitState.Record(ctx, gauge, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordCircuitRejection records a fast-fail rejection.
func (m *Metrics) RecordCircuitRejection(ctx context.Context, endpoint string) {
	m.circuitRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordCacheHit records a response served from cache.
func (m *Metrics) RecordCacheHit(ctx context.Context, endpoint string) {
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordCacheMiss records a cacheable request that went to the wire.
func (m *Metrics) RecordCacheMiss(ctx context.Context, endpoint string) {
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}
