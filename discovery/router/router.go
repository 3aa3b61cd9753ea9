// Package router implements discovery through a routing proxy: every
// service is reachable at a host derived from a name pattern, on one fixed
// port. This matches deployments where an edge router fans out by hostname
// and no catalog lookup is needed.
package router

import (
	"context"
	"strings"

	"github.com/mardiros/aioli/discovery"
)

const (
	defaultNameFormat            = "{service}.{version}"
	defaultUnversionedNameFormat = "{service}"
)

// Config configures the router Resolver.
type Config struct {
	// Scheme for all routed services. Default: "http".
	Scheme string `mapstructure:"scheme"`

	// Domain is appended to the formatted service name to build the host,
	// e.g. "router.local" gives "user-service.v1.router.local".
	Domain string `mapstructure:"domain"`

	// Port is the single port the router listens on. Default: 80.
	Port int `mapstructure:"port"`

	// NameFormat builds the host prefix from {service} and {version}.
	// Default: "{service}.{version}".
	NameFormat string `mapstructure:"name_format"`

	// UnversionedNameFormat is used when the version is empty.
	// Default: "{service}".
	UnversionedNameFormat string `mapstructure:"unversioned_name_format"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	if c.Port <= 0 {
		c.Port = 80
	}
	if c.NameFormat == "" {
		c.NameFormat = defaultNameFormat
	}
	if c.UnversionedNameFormat == "" {
		c.UnversionedNameFormat = defaultUnversionedNameFormat
	}
}

// Resolver derives addresses from the configured pattern. It never fails
// and never performs I/O: the router is assumed to know every service.
type Resolver struct {
	cfg Config
}

// NewResolver creates a router Resolver.
func NewResolver(cfg Config) *Resolver {
	cfg.ApplyDefaults()
	return &Resolver{cfg: cfg}
}

// Resolve builds the routed address for (service, version).
func (r *Resolver) Resolve(_ context.Context, service, version string) (discovery.ServiceAddress, error) {
	format := r.cfg.NameFormat
	if version == "" {
		format = r.cfg.UnversionedNameFormat
	}
	host := strings.NewReplacer("{service}", service, "{version}", version).Replace(format)
	if r.cfg.Domain != "" {
		host += "." + r.cfg.Domain
	}

	return discovery.ServiceAddress{
		Name:    service,
		Version: version,
		Scheme:  r.cfg.Scheme,
		Host:    host,
		Port:    r.cfg.Port,
	}, nil
}

// Compile-time check.
var _ discovery.Resolver = (*Resolver)(nil)
