// Package static implements discovery over a fixed address table loaded at
// configuration time. Useful for local development and testing.
package static

import (
	"context"
	"fmt"

	"github.com/mardiros/aioli/discovery"
)

// Endpoint describes a statically configured service address.
type Endpoint struct {
	Service string `mapstructure:"service"`
	Version string `mapstructure:"version"`
	Scheme  string `mapstructure:"scheme"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Resolver resolves services from an in-memory table. Resolution is a pure
// lookup and never performs I/O. The table is immutable after construction,
// so Resolver is safe for concurrent use without locking.
type Resolver struct {
	addresses map[string]discovery.ServiceAddress
}

// NewResolver creates a Resolver pre-populated from the given endpoints.
func NewResolver(endpoints []Endpoint) *Resolver {
	addresses := make(map[string]discovery.ServiceAddress, len(endpoints))
	for _, ep := range endpoints {
		scheme := ep.Scheme
		if scheme == "" {
			scheme = "http"
		}
		addresses[key(ep.Service, ep.Version)] = discovery.ServiceAddress{
			Name:    ep.Service,
			Version: ep.Version,
			Scheme:  scheme,
			Host:    ep.Host,
			Port:    ep.Port,
		}
	}
	return &Resolver{addresses: addresses}
}

// Resolve looks up the address for (service, version); fails with
// ErrServiceNotFound when absent from the table.
func (r *Resolver) Resolve(_ context.Context, service, version string) (discovery.ServiceAddress, error) {
	addr, ok := r.addresses[key(service, version)]
	if !ok {
		return discovery.ServiceAddress{}, fmt.Errorf("%w: %s/%s", discovery.ErrServiceNotFound, service, version)
	}
	return addr, nil
}

func key(service, version string) string {
	return service + "/" + version
}

// Compile-time check.
var _ discovery.Resolver = (*Resolver)(nil)
