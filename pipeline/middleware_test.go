package pipeline

import (
	"context"
	"reflect"
	"testing"
)

func recordingMiddleware(name string, trace *[]string) Middleware {
	return MiddlewareFunc(func(ctx context.Context, req *Request, next Next) Outcome {
		*trace = append(*trace, name+":in")
		out := next(ctx, req)
		*trace = append(*trace, name+":out")
		return out
	})
}

func TestChain_ExecutesInRegistrationOrder(t *testing.T) {
	var trace []string
	terminal := func(ctx context.Context, req *Request) Outcome {
		trace = append(trace, "transport")
		return Success(NewResponse(200, nil, nil))
	}

	chain := Chain(terminal,
		recordingMiddleware("A", &trace),
		recordingMiddleware("B", &trace),
		recordingMiddleware("C", &trace),
	)

	out := chain(context.Background(), &Request{Method: "GET", Path: "/"})
	if !out.IsSuccess() {
		t.Fatalf("expected success, got %s", out.Kind)
	}

	want := []string{"A:in", "B:in", "C:in", "transport", "C:out", "B:out", "A:out"}
	if !reflect.DeepEqual(trace, want) {
		t.Errorf("execution order = %v, want %v", trace, want)
	}
}

func TestChain_MiddlewareCanShortCircuit(t *testing.T) {
	terminal := func(ctx context.Context, req *Request) Outcome {
		t.Error("transport should not have been called")
		return Success(nil)
	}

	blocker := MiddlewareFunc(func(ctx context.Context, req *Request, next Next) Outcome {
		return CircuitOpen(errTest)
	})

	out := Chain(terminal, blocker)(context.Background(), &Request{})
	if out.Kind != KindCircuitOpen {
		t.Errorf("expected KindCircuitOpen, got %s", out.Kind)
	}
}

func TestChain_MiddlewareCanMutateRequest(t *testing.T) {
	var seen string
	terminal := func(ctx context.Context, req *Request) Outcome {
		seen = req.Header("X-Stamp")
		return Success(NewResponse(200, nil, nil))
	}

	stamper := MiddlewareFunc(func(ctx context.Context, req *Request, next Next) Outcome {
		req.SetHeader("x-stamp", "present")
		return next(ctx, req)
	})

	Chain(terminal, stamper)(context.Background(), &Request{})
	if seen != "present" {
		t.Errorf("header not propagated, got %q", seen)
	}
}

func TestChain_EmptyChainCallsTerminal(t *testing.T) {
	called := false
	terminal := func(ctx context.Context, req *Request) Outcome {
		called = true
		return Success(NewResponse(204, nil, nil))
	}

	Chain(terminal)(context.Background(), &Request{})
	if !called {
		t.Error("terminal was not called")
	}
}
