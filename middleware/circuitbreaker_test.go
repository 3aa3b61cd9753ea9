package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mardiros/aioli/pipeline"
	"github.com/mardiros/aioli/resilience"
)

func newTestRequest() *pipeline.Request {
	return &pipeline.Request{
		Method:   "GET",
		Path:     "/users/123",
		Endpoint: pipeline.Key{Service: "user-service", Version: "v1", Route: "user"},
	}
}

// scriptedNext returns the queued outcomes in order and counts invocations.
func scriptedNext(calls *int, outcomes ...pipeline.Outcome) pipeline.Next {
	i := 0
	return func(ctx context.Context, req *pipeline.Request) pipeline.Outcome {
		*calls++
		out := outcomes[i]
		if i < len(outcomes)-1 {
			i++
		}
		return out
	}
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 3}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	next := scriptedNext(&calls, pipeline.Success(pipeline.NewResponse(200, nil, []byte("ok"))))

	out := mw.Handle(context.Background(), newTestRequest(), next)
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestCircuitBreaker_OpensAfterServerErrors(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	next := scriptedNext(&calls, pipeline.HTTPFailure(pipeline.NewResponse(503, nil, nil)))

	for i := 0; i < 3; i++ {
		out := mw.Handle(context.Background(), newTestRequest(), next)
		if out.Kind != pipeline.KindHTTPError {
			t.Fatalf("call %d: expected http error, got %s", i, out.Kind)
		}
	}

	out := mw.Handle(context.Background(), newTestRequest(), next)
	if out.Kind != pipeline.KindCircuitOpen {
		t.Fatalf("expected circuit open, got %s", out.Kind)
	}
	if calls != 3 {
		t.Fatalf("expected no transport attempt after opening, got %d calls", calls)
	}
}

func TestCircuitBreaker_TimeoutsTrip(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	next := scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded))

	mw.Handle(context.Background(), newTestRequest(), next)
	mw.Handle(context.Background(), newTestRequest(), next)

	out := mw.Handle(context.Background(), newTestRequest(), next)
	if out.Kind != pipeline.KindCircuitOpen {
		t.Fatalf("expected circuit open, got %s", out.Kind)
	}
}

func TestCircuitBreaker_ClientErrorsNeverTrip(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 2}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	next := scriptedNext(&calls, pipeline.HTTPFailure(pipeline.NewResponse(404, nil, nil)))

	for i := 0; i < 10; i++ {
		out := mw.Handle(context.Background(), newTestRequest(), next)
		if out.Kind != pipeline.KindHTTPError {
			t.Fatalf("call %d: expected http error, got %s", i, out.Kind)
		}
	}
	if calls != 10 {
		t.Fatalf("expected every call to reach the transport, got %d", calls)
	}
}

func TestCircuitBreaker_NotModifiedResetsStreak(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded)))
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.HTTPFailure(pipeline.NewResponse(304, nil, nil))))
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded)))

	out := mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Success(pipeline.NewResponse(200, nil, nil))))
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected 304 to reset the streak, got %s", out.Kind)
	}
}

func TestCircuitBreaker_ProbeAfterRecovery(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded)))

	out := mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Success(nil)))
	if out.Kind != pipeline.KindCircuitOpen {
		t.Fatalf("expected rejection before recovery timeout, got %s", out.Kind)
	}

	time.Sleep(30 * time.Millisecond)

	out = mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Success(pipeline.NewResponse(200, nil, nil))))
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected probe to pass through, got %s", out.Kind)
	}

	out = mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Success(pipeline.NewResponse(200, nil, nil))))
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected circuit closed after successful probe, got %s", out.Kind)
	}
}

func TestCircuitBreaker_ResolutionFailuresAreNeutral(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	resolution := scriptedNext(&calls, pipeline.ResolutionFailure(errors.New("service not found")))

	for i := 0; i < 5; i++ {
		out := mw.Handle(context.Background(), newTestRequest(), resolution)
		if out.Kind != pipeline.KindResolution {
			t.Fatalf("call %d: expected resolution failure, got %s", i, out.Kind)
		}
	}

	breaker := registry.Get(newTestRequest().Endpoint.String())
	if got := breaker.State(); got != resilience.StateClosed {
		t.Fatalf("expected breaker to stay closed, got %s", got)
	}
	// Neutral outcomes neither trip nor reset: a prior failure still counts.
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded)))
	mw.Handle(context.Background(), newTestRequest(), resolution)
	if got := breaker.ConsecutiveFailures(); got != 1 {
		t.Fatalf("expected failure streak preserved across neutral outcome, got %d", got)
	}
}

func TestCircuitBreaker_ResolutionFailureProbeFreesSlot(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded)))
	time.Sleep(30 * time.Millisecond)

	// The probe hits a discovery blip: no verdict on the endpoint itself.
	out := mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.ResolutionFailure(errors.New("catalog unreachable"))))
	if out.Kind != pipeline.KindResolution {
		t.Fatalf("expected resolution failure, got %s", out.Kind)
	}

	// The very next caller must be admitted as a fresh probe.
	out = mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Success(pipeline.NewResponse(200, nil, nil))))
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected fresh probe to be admitted, got %s", out.Kind)
	}

	breaker := registry.Get(newTestRequest().Endpoint.String())
	if got := breaker.State(); got != resilience.StateClosed {
		t.Fatalf("expected circuit closed after successful probe, got %s", got)
	}
}

func TestCircuitBreaker_CanceledTransportIsNeutral(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	canceled := scriptedNext(&calls, pipeline.TransportFailure(fmt.Errorf("request aborted: %w", context.Canceled)))

	out := mw.Handle(context.Background(), newTestRequest(), canceled)
	if out.Kind != pipeline.KindTransport {
		t.Fatalf("expected transport failure, got %s", out.Kind)
	}

	breaker := registry.Get(newTestRequest().Endpoint.String())
	if got := breaker.State(); got != resilience.StateClosed {
		t.Fatalf("expected caller cancellation not to trip the breaker, got %s", got)
	}
}

func TestCircuitBreaker_PanickingNextFreesProbeSlot(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond}, nil)
	mw := NewCircuitBreaker(registry, nil)

	calls := 0
	mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Timeout(context.DeadlineExceeded)))
	time.Sleep(30 * time.Millisecond)

	func() {
		defer func() { _ = recover() }()
		mw.Handle(context.Background(), newTestRequest(), func(ctx context.Context, req *pipeline.Request) pipeline.Outcome {
			panic("user middleware bug")
		})
	}()

	out := mw.Handle(context.Background(), newTestRequest(), scriptedNext(&calls, pipeline.Success(pipeline.NewResponse(200, nil, nil))))
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected probe slot released after panic, got %s", out.Kind)
	}
}

func TestCircuitBreaker_CanceledCallerDoesNotTouchBreaker(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, nil)
	mw := NewCircuitBreaker(registry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	out := mw.Handle(ctx, newTestRequest(), scriptedNext(&calls, pipeline.Success(nil)))
	if out.Kind != pipeline.KindTimeout {
		t.Fatalf("expected timeout outcome, got %s", out.Kind)
	}
	if calls != 0 {
		t.Fatalf("expected no transport attempt, got %d", calls)
	}

	breaker := registry.Get(newTestRequest().Endpoint.String())
	if got := breaker.State(); got != resilience.StateClosed {
		t.Fatalf("expected breaker untouched, got state %s", got)
	}
	if got := breaker.ConsecutiveFailures(); got != 0 {
		t.Fatalf("expected no recorded failures, got %d", got)
	}
}
