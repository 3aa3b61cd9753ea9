// Package transport adapts net/http to the dispatch pipeline. It is the
// innermost link of the chain: it builds the outbound request against a
// resolved base URL, executes it, and converts raw transport failures into
// typed errors so nothing below the dispatcher ever panics or leaks an
// unclassified error.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mardiros/aioli/pipeline"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP transport.
type Config struct {
	// Timeout bounds a single transport call, independent of the caller's
	// context deadline. Default: 30s.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are default headers applied to every outbound request unless
	// the request already carries them.
	Headers map[string]string `mapstructure:"headers"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Transport executes one outbound request against a base URL. Expected
// failures are returned as *TimeoutError or *ConnectionError; a response
// with an error status is NOT an error at this layer.
type Transport interface {
	Do(ctx context.Context, baseURL string, req *pipeline.Request) (*pipeline.Response, error)
}

// TimeoutError means the deadline elapsed before a response arrived.
type TimeoutError struct {
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string { return fmt.Sprintf("transport timeout: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error { return e.Err }

// CanceledError means the caller canceled the context while the call was
// in flight. It always matches errors.Is(err, context.Canceled), so the
// breaker can tell it apart from endpoint unhealthiness.
type CanceledError struct {
	Err error
}

// Error implements the error interface.
func (e *CanceledError) Error() string { return fmt.Sprintf("transport canceled: %v", e.Err) }

// Unwrap returns the underlying error and context.Canceled.
func (e *CanceledError) Unwrap() []error { return []error{e.Err, context.Canceled} }

// ConnectionError is a network or protocol failure after attempting.
type ConnectionError struct {
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string { return fmt.Sprintf("transport failure: %v", e.Err) }

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// HTTPTransport is the default Transport over net/http.
type HTTPTransport struct {
	client *http.Client
	cfg    Config
}

// New creates an HTTPTransport with the given configuration.
func New(cfg Config) *HTTPTransport {
	cfg.ApplyDefaults()
	return &HTTPTransport{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// NewWithClient wraps an existing *http.Client, for callers that manage
// connection pooling or TLS themselves.
func NewWithClient(client *http.Client, cfg Config) *HTTPTransport {
	cfg.ApplyDefaults()
	return &HTTPTransport{client: client, cfg: cfg}
}

// Do executes the request and reads the full response body.
func (t *HTTPTransport) Do(ctx context.Context, baseURL string, req *pipeline.Request) (*pipeline.Response, error) {
	httpReq, err := t.buildRequest(ctx, baseURL, req)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read response body: %w", err))
	}

	return pipeline.NewResponse(resp.StatusCode, flattenHeaders(resp.Header), body), nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, baseURL string, req *pipeline.Request) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers() {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// classify converts a raw client error into the typed taxonomy. A deadline
// that elapsed anywhere in the attempt surfaces as *TimeoutError; an
// explicit caller cancellation is *CanceledError, distinct from both
// timeouts and network-level failures.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return &CanceledError{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	return &ConnectionError{Err: err}
}

func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}

// Compile-time check.
var _ Transport = (*HTTPTransport)(nil)
