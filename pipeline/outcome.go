package pipeline

import "fmt"

// Kind classifies a dispatch outcome.
type Kind int

const (
	// KindSuccess is a well-formed response with a 2xx status.
	KindSuccess Kind = iota
	// KindHTTPError is a well-formed response with a 4xx or 5xx status.
	KindHTTPError
	// KindTimeout means the deadline elapsed before a response arrived.
	KindTimeout
	// KindCircuitOpen means the breaker rejected the call before any
	// transport attempt.
	KindCircuitOpen
	// KindTransport is a network or protocol failure after attempting.
	KindTransport
	// KindResolution means service discovery could not produce an address.
	KindResolution
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindHTTPError:
		return "http_error"
	case KindTimeout:
		return "timeout"
	case KindCircuitOpen:
		return "circuit_open"
	case KindTransport:
		return "transport_error"
	case KindResolution:
		return "resolution_error"
	default:
		return "unknown"
	}
}

// HTTPError is the error carried by KindHTTPError outcomes. It keeps the
// full response so callers can branch on business logic.
type HTTPError struct {
	Response *Response
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.Response.StatusCode)
}

// IsClientError reports whether the status is 4xx. Client errors indicate
// caller mistakes, not dependency unhealthiness, and never trip a breaker.
func (e *HTTPError) IsClientError() bool {
	return e.Response.StatusCode >= 400 && e.Response.StatusCode < 500
}

// IsServerError reports whether the status is 5xx.
func (e *HTTPError) IsServerError() bool {
	return e.Response.StatusCode >= 500
}

// Outcome is the tagged result of one dispatch. Every expected failure mode
// is an Outcome value, never a raised error: callers branch on Kind (or use
// Unwrap) and no variant is silently swallowed by the framework.
type Outcome struct {
	Kind     Kind
	Response *Response
	Err      error
}

// Success wraps a 2xx response.
func Success(resp *Response) Outcome {
	return Outcome{Kind: KindSuccess, Response: resp}
}

// HTTPFailure wraps a well-formed error response (4xx/5xx).
func HTTPFailure(resp *Response) Outcome {
	return Outcome{Kind: KindHTTPError, Response: resp, Err: &HTTPError{Response: resp}}
}

// FromResponse classifies a response into Success or HTTPFailure.
func FromResponse(resp *Response) Outcome {
	if resp.IsSuccess() {
		return Success(resp)
	}
	return HTTPFailure(resp)
}

// Timeout wraps a deadline-exceeded failure surfaced by the transport.
func Timeout(err error) Outcome {
	return Outcome{Kind: KindTimeout, Err: err}
}

// CircuitOpen wraps a fast-fail rejection; no transport attempt was made.
func CircuitOpen(err error) Outcome {
	return Outcome{Kind: KindCircuitOpen, Err: err}
}

// TransportFailure wraps a network-level failure after attempting.
func TransportFailure(err error) Outcome {
	return Outcome{Kind: KindTransport, Err: err}
}

// ResolutionFailure wraps a service-discovery failure.
func ResolutionFailure(err error) Outcome {
	return Outcome{Kind: KindResolution, Err: err}
}

// IsSuccess reports whether the outcome carries a 2xx response.
func (o Outcome) IsSuccess() bool {
	return o.Kind == KindSuccess
}

// Unwrap returns the response and error halves of the outcome. Exactly one
// of them is meaningful except for KindHTTPError, where both are set.
func (o Outcome) Unwrap() (*Response, error) {
	return o.Response, o.Err
}
