package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mardiros/aioli/logger"
)

type fakeBackend struct {
	calls int
	addr  ServiceAddress
	err   error
}

func (f *fakeBackend) Resolve(ctx context.Context, service, version string) (ServiceAddress, error) {
	f.calls++
	if f.err != nil {
		return ServiceAddress{}, f.err
	}
	return f.addr, nil
}

func testAddr() ServiceAddress {
	return ServiceAddress{Name: "user-service", Version: "v1", Scheme: "http", Host: "10.0.0.7", Port: 8080}
}

func TestCachingResolver_ServesCachedWithinTTL(t *testing.T) {
	backend := &fakeBackend{addr: testAddr()}
	r := NewCachingResolver(backend, CacheConfig{TTL: time.Minute}, logger.Nop())

	first, err := r.Resolve(context.Background(), "user-service", "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve(context.Background(), "user-service", "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("cached address differs from original")
	}
	if backend.calls != 1 {
		t.Errorf("backend queried %d times, want 1", backend.calls)
	}
}

func TestCachingResolver_RequeriesAfterExpiry(t *testing.T) {
	backend := &fakeBackend{addr: testAddr()}
	r := NewCachingResolver(backend, CacheConfig{TTL: 10 * time.Millisecond}, logger.Nop())

	if _, err := r.Resolve(context.Background(), "user-service", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := r.Resolve(context.Background(), "user-service", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if backend.calls != 2 {
		t.Errorf("backend queried %d times, want 2", backend.calls)
	}
}

func TestCachingResolver_ServesStaleWithinGrace(t *testing.T) {
	backend := &fakeBackend{addr: testAddr()}
	r := NewCachingResolver(backend, CacheConfig{TTL: 10 * time.Millisecond, Grace: time.Minute}, logger.Nop())

	if _, err := r.Resolve(context.Background(), "user-service", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	backend.err = fmt.Errorf("%w: connection refused", ErrBackendUnavailable)

	addr, err := r.Resolve(context.Background(), "user-service", "v1")
	if err != nil {
		t.Fatalf("expected stale address, got error: %v", err)
	}
	if addr != testAddr() {
		t.Errorf("stale address = %+v", addr)
	}
}

func TestCachingResolver_GraceDoesNotMaskUnknownService(t *testing.T) {
	backend := &fakeBackend{addr: testAddr()}
	r := NewCachingResolver(backend, CacheConfig{TTL: 10 * time.Millisecond, Grace: time.Minute}, logger.Nop())

	if _, err := r.Resolve(context.Background(), "user-service", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	backend.err = fmt.Errorf("%w: user-service", ErrServiceNotFound)

	_, err := r.Resolve(context.Background(), "user-service", "v1")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("not-found classification lost through wrapping")
	}
}

func TestCachingResolver_FailureWithoutCacheFails(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	r := NewCachingResolver(backend, CacheConfig{}, logger.Nop())

	_, err := r.Resolve(context.Background(), "ghost", "v1")
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *ResolutionError, got %v", err)
	}
	if resErr.Service != "ghost" {
		t.Errorf("service = %q", resErr.Service)
	}
}

func TestCachingResolver_InvalidateForcesRequery(t *testing.T) {
	backend := &fakeBackend{addr: testAddr()}
	r := NewCachingResolver(backend, CacheConfig{TTL: time.Minute}, logger.Nop())

	if _, err := r.Resolve(context.Background(), "user-service", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Invalidate("user-service", "v1")
	if _, err := r.Resolve(context.Background(), "user-service", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if backend.calls != 2 {
		t.Errorf("backend queried %d times, want 2", backend.calls)
	}
}

func TestServiceAddress_URL(t *testing.T) {
	addr := ServiceAddress{Scheme: "https", Host: "api.internal", Port: 443}
	if got := addr.URL(); got != "https://api.internal:443" {
		t.Errorf("URL = %q", got)
	}
}
