package pipeline

import (
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

// Key identifies one logical destination: a route on a versioned service.
// It is the unit of circuit-breaker and cache granularity.
type Key struct {
	Service string
	Version string
	Route   string
}

// String renders the key as "service/version/route", omitting the version
// segment for unversioned services. The rendering is stable and
// collision-free across registered contracts.
func (k Key) String() string {
	if k.Version == "" {
		return k.Service + "/" + k.Route
	}
	return k.Service + "/" + k.Version + "/" + k.Route
}

// Request is the outbound envelope passed by reference through the
// middleware chain. Middleware may read and mutate headers, query and body
// before forwarding.
type Request struct {
	// Method is the HTTP method (GET, POST, ...).
	Method string

	// Path is the request path with path parameters already expanded.
	Path string

	// headers holds canonicalized header names; use Header/SetHeader.
	headers map[string]string

	// Query are URL query parameters.
	Query map[string]string

	// Body is the encoded request body, nil when absent.
	Body []byte

	// Endpoint identifies the destination route.
	Endpoint Key

	// CorrelationID tags every log line and span for this dispatch.
	CorrelationID string
}

// Header returns the value of the named header. Lookup is case-insensitive.
func (r *Request) Header(name string) string {
	if r.headers == nil {
		return ""
	}
	return r.headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// SetHeader sets a header, replacing any existing value for the same name
// regardless of case.
func (r *Request) SetHeader(name, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// Headers returns the header map with canonicalized names. The returned map
// is the live one; mutations are visible to the rest of the chain.
func (r *Request) Headers() map[string]string {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	return r.headers
}

// CanonicalQuery renders the query parameters sorted by name, suitable for
// deterministic cache keys. Returns "" when there are none.
func (r *Request) CanonicalQuery() string {
	if len(r.Query) == 0 {
		return ""
	}
	names := make([]string, 0, len(r.Query))
	for name := range r.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(r.Query[name]))
	}
	return b.String()
}

// Response is the inbound half of the envelope.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// headers holds canonicalized header names; use Header/SetHeader.
	headers map[string]string

	// Body is the raw response body.
	Body []byte
}

// NewResponse builds a Response, canonicalizing the given header names.
func NewResponse(statusCode int, headers map[string]string, body []byte) *Response {
	resp := &Response{StatusCode: statusCode, Body: body}
	for name, value := range headers {
		resp.SetHeader(name, value)
	}
	return resp
}

// Header returns the value of the named header. Lookup is case-insensitive.
func (r *Response) Header(name string) string {
	if r.headers == nil {
		return ""
	}
	return r.headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// SetHeader sets a response header, replacing any existing value.
func (r *Response) SetHeader(name, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// Headers returns the live header map with canonicalized names.
func (r *Response) Headers() map[string]string {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	return r.headers
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
