package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/mardiros/aioli/logger"
)

const (
	defaultTTL   = 30 * time.Second
	defaultGrace = 2 * time.Minute
)

// CacheConfig configures the CachingResolver.
type CacheConfig struct {
	// TTL is how long a resolved address is served without re-querying the
	// backend. Default: 30s.
	TTL time.Duration `mapstructure:"ttl"`

	// Grace is how long past expiry a last-known-good address may still be
	// served when the backend fails. Default: 2m.
	Grace time.Duration `mapstructure:"grace"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *CacheConfig) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.Grace <= 0 {
		c.Grace = defaultGrace
	}
}

// CachingResolver wraps a backend Resolver with a TTL cache shared across
// callers. Reads are lock-free with respect to refreshes: a caller holding
// a still-valid entry never waits for another caller's re-query.
type CachingResolver struct {
	backend Resolver
	cfg     CacheConfig
	log     *logger.Logger

	mu      sync.RWMutex
	entries map[string]cachedAddress
}

type cachedAddress struct {
	addr       ServiceAddress
	freshUntil time.Time
	staleUntil time.Time
}

// NewCachingResolver creates a CachingResolver over the given backend.
func NewCachingResolver(backend Resolver, cfg CacheConfig, log *logger.Logger) *CachingResolver {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &CachingResolver{
		backend: backend,
		cfg:     cfg,
		log:     log.WithComponent("resolver"),
		entries: make(map[string]cachedAddress),
	}
}

// Resolve returns the cached address while fresh, re-queries the backend on
// expiry, and serves the last-known-good address when the backend fails
// within the grace window.
func (r *CachingResolver) Resolve(ctx context.Context, service, version string) (ServiceAddress, error) {
	key := cacheKey(service, version)
	now := time.Now()

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if ok && now.Before(entry.freshUntil) {
		return entry.addr, nil
	}

	addr, err := r.backend.Resolve(ctx, service, version)
	if err != nil {
		// An unknown service is a real answer, not a backend blip.
		if ok && !IsNotFound(err) && now.Before(entry.staleUntil) {
			r.log.Warn("serving stale address after backend failure", logger.Fields(
				logger.FieldService, service,
				logger.FieldVersion, version,
				logger.FieldError, err.Error(),
			))
			return entry.addr, nil
		}
		return ServiceAddress{}, &ResolutionError{Service: service, Version: version, Err: err}
	}

	r.mu.Lock()
	r.entries[key] = cachedAddress{
		addr:       addr,
		freshUntil: now.Add(r.cfg.TTL),
		staleUntil: now.Add(r.cfg.TTL + r.cfg.Grace),
	}
	r.mu.Unlock()

	return addr, nil
}

// Invalidate drops the cached entry for a (service, version) pair.
func (r *CachingResolver) Invalidate(service, version string) {
	r.mu.Lock()
	delete(r.entries, cacheKey(service, version))
	r.mu.Unlock()
}

func cacheKey(service, version string) string {
	return service + "/" + version
}

// Compile-time check.
var _ Resolver = (*CachingResolver)(nil)
