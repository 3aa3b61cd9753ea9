package resilience

import "sync"

// Registry holds one Breaker per endpoint key, created lazily on first call
// and never destroyed. Lookup takes a short registry-wide lock; breaker
// transitions only ever take the per-breaker lock, so throughput scales
// with the number of distinct endpoints.
type Registry struct {
	defaults  BreakerConfig
	overrides map[string]BreakerConfig

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates a Registry with the given default configuration and
// optional per-endpoint overrides keyed by endpoint string.
func NewRegistry(defaults BreakerConfig, overrides map[string]BreakerConfig) *Registry {
	defaults.ApplyDefaults()
	return &Registry{
		defaults:  defaults,
		overrides: overrides,
		breakers:  make(map[string]*Breaker),
	}
}

// Get returns the breaker for the endpoint key, creating it on first use.
// Every endpoint key maps to exactly one breaker for the process lifetime.
func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}

	// Overrides overlay the registry defaults field by field; hooks are
	// always inherited.
	cfg := r.defaults
	if override, ok := r.overrides[endpoint]; ok {
		if override.FailureThreshold > 0 {
			cfg.FailureThreshold = override.FailureThreshold
		}
		if override.RecoveryTimeout > 0 {
			cfg.RecoveryTimeout = override.RecoveryTimeout
		}
	}

	b = NewBreaker(endpoint, cfg)
	r.breakers[endpoint] = b
	return b
}
