package config

import (
	"fmt"

	"github.com/mardiros/aioli/cachestore"
	"github.com/mardiros/aioli/discovery"
	"github.com/mardiros/aioli/discovery/consul"
	"github.com/mardiros/aioli/discovery/router"
	"github.com/mardiros/aioli/discovery/static"
	"github.com/mardiros/aioli/logger"
	"github.com/mardiros/aioli/middleware"
	"github.com/mardiros/aioli/resilience"
	"github.com/mardiros/aioli/transport"
)

// DiscoveryConfig selects and configures the service-discovery strategy.
type DiscoveryConfig struct {
	// Strategy is one of "static", "router" or "consul".
	Strategy string `yaml:"strategy" mapstructure:"strategy"`

	// Cache configures address caching for I/O-backed strategies.
	Cache discovery.CacheConfig `yaml:"cache" mapstructure:"cache"`

	Static []static.Endpoint `yaml:"static" mapstructure:"static"`
	Router router.Config     `yaml:"router" mapstructure:"router"`
	Consul consul.Config     `yaml:"consul" mapstructure:"consul"`
}

// CacheStoreConfig selects and configures the HTTP response cache backend.
type CacheStoreConfig struct {
	// Backend is "", "memory" or "redis"; empty disables response caching.
	Backend string                 `yaml:"backend" mapstructure:"backend"`
	Policy  middleware.CacheConfig `yaml:"policy" mapstructure:"policy"`
	Redis   cachestore.RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// Config is the full framework configuration surface.
type Config struct {
	// Name identifies the consuming application in logs and telemetry.
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging   logger.Config   `yaml:"logging" mapstructure:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Transport transport.Config `yaml:"transport" mapstructure:"transport"`

	Breaker          resilience.BreakerConfig            `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	BreakerOverrides map[string]resilience.BreakerConfig `yaml:"circuit_breaker_overrides" mapstructure:"circuit_breaker_overrides"`

	Cache CacheStoreConfig `yaml:"cache" mapstructure:"cache"`
}

// ApplyDefaults fills zero-valued fields across all sections.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Discovery.Strategy == "" {
		c.Discovery.Strategy = "static"
	}
	c.Logging.ApplyDefaults()
	c.Transport.ApplyDefaults()
	c.Breaker.ApplyDefaults()
	c.Cache.Policy.ApplyDefaults()
}

// Validate checks the configuration for contract violations. These surface
// as hard errors at setup time, never at call time.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.Discovery.Strategy {
	case "static", "router", "consul":
	default:
		return fmt.Errorf("discovery.strategy must be one of [static, router, consul] (got: %s)", c.Discovery.Strategy)
	}
	switch c.Cache.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be one of [memory, redis] (got: %s)", c.Cache.Backend)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads, defaults and validates the framework configuration.
func Load(opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadInto(&cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildResolver constructs the resolver selected by the discovery section.
// I/O-backed strategies are wrapped in the caching resolver.
func (c *DiscoveryConfig) BuildResolver(log *logger.Logger) (discovery.Resolver, error) {
	switch c.Strategy {
	case "static":
		return static.NewResolver(c.Static), nil
	case "router":
		return router.NewResolver(c.Router), nil
	case "consul":
		backend, err := consul.NewResolver(c.Consul, log)
		if err != nil {
			return nil, fmt.Errorf("building consul resolver: %w", err)
		}
		return discovery.NewCachingResolver(backend, c.Cache, log), nil
	default:
		return nil, fmt.Errorf("unknown discovery strategy %q", c.Strategy)
	}
}

// BuildStore constructs the response cache backend, nil when disabled.
func (c *CacheStoreConfig) BuildStore() (cachestore.Store, error) {
	switch c.Backend {
	case "":
		return nil, nil
	case "memory":
		return cachestore.NewMemoryStore(), nil
	case "redis":
		return cachestore.NewRedisStore(c.Redis), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
	}
}
