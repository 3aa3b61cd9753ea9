package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("reviews-app")

	if cfg.ServiceName != "reviews-app" {
		t.Errorf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if !cfg.Insecure {
		t.Error("expected insecure default for development")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("reviews-app")

	if cfg.ServiceName != "reviews-app" {
		t.Errorf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("unexpected interval %v", cfg.Interval)
	}
}

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordCall(ctx, "user-service/v1/user.get-email", "success", 20*time.Millisecond)
	metrics.RecordCircuitTransition(ctx, "user-service/v1/user.get-email", "closed", "open", 2)
	metrics.RecordCircuitRejection(ctx, "user-service/v1/user.get-email")
	metrics.RecordCacheHit(ctx, "user-service/v1/user.get-email")
	metrics.RecordCacheMiss(ctx, "user-service/v1/user.get-email")
}
