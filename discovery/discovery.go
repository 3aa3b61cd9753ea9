package discovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Common discovery errors.
var (
	// ErrServiceNotFound means the service is unknown to the backend.
	ErrServiceNotFound = errors.New("service not found")
	// ErrBackendUnavailable means the discovery backend could not be reached.
	ErrBackendUnavailable = errors.New("discovery backend unavailable")
)

// ServiceAddress is a resolved network location for a versioned service.
// It is immutable once issued by a Resolver.
type ServiceAddress struct {
	Name    string
	Version string
	Scheme  string
	Host    string
	Port    int
}

// URL renders the address as a base URL, e.g. "http://10.0.0.7:8080".
func (a ServiceAddress) URL() string {
	return a.Scheme + "://" + a.Host + ":" + strconv.Itoa(a.Port)
}

// Resolver maps a logical (service, version) pair to a concrete address.
// Resolution may perform network I/O; callers must treat it as a blocking
// operation bounded by the context, with its own timeout distinct from the
// downstream call's.
type Resolver interface {
	Resolve(ctx context.Context, service, version string) (ServiceAddress, error)
}

// Watcher is an optional capability: strategies that can observe membership
// changes emit the current address whenever it changes. The channel closes
// when the context is cancelled.
type Watcher interface {
	Watch(ctx context.Context, service string) (<-chan ServiceAddress, error)
}

// ResolutionError wraps a discovery failure with the service it concerns.
type ResolutionError struct {
	Service string
	Version string
	Err     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("resolve %s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("resolve %s/%s: %v", e.Service, e.Version, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the service is unknown rather than
// the backend being unreachable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}
