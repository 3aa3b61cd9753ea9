package client

import (
	"context"

	"github.com/mardiros/aioli/cachestore"
	"github.com/mardiros/aioli/discovery"
	"github.com/mardiros/aioli/logger"
	"github.com/mardiros/aioli/middleware"
	"github.com/mardiros/aioli/observability"
	"github.com/mardiros/aioli/pipeline"
	"github.com/mardiros/aioli/resilience"
	"github.com/mardiros/aioli/transport"
	"github.com/mardiros/aioli/version"
)

// Config configures a client factory.
type Config struct {
	// Transport configures the HTTP transport.
	Transport transport.Config `mapstructure:"transport"`

	// Breaker is the default circuit-breaker policy; BreakerOverrides maps
	// endpoint keys (service/version/route) to per-endpoint policies.
	Breaker          resilience.BreakerConfig            `mapstructure:"circuit_breaker"`
	BreakerOverrides map[string]resilience.BreakerConfig `mapstructure:"circuit_breaker_overrides"`

	// Cache configures the HTTP caching middleware. CacheStore enables it;
	// when nil, responses are never cached.
	Cache      middleware.CacheConfig `mapstructure:"cache"`
	CacheStore cachestore.Store       `mapstructure:"-"`

	// Metrics enables metric collection when set.
	Metrics *observability.Metrics `mapstructure:"-"`

	// Tracing enables span creation and trace-context propagation.
	Tracing bool `mapstructure:"tracing"`
}

// Factory owns the process-wide dispatch state: the contract registry, the
// resolver, the breaker registry and the middleware chain. Create one per
// process and share it across callers; it is safe for concurrent dispatch
// once configured.
type Factory struct {
	registry   *Registry
	resolver   discovery.Resolver
	breakers   *resilience.Registry
	dispatcher *Dispatcher
	middleware []pipeline.Middleware
	dispatch   pipeline.Next
	log        *logger.Logger
}

// New creates a factory. The standard middleware chain is assembled from
// the configuration: metrics outermost, then tracing, response caching,
// and the circuit breaker innermost. Register user middleware with Use
// before the first dispatch.
func New(resolver discovery.Resolver, cfg Config, log *logger.Logger) *Factory {
	if log == nil {
		log = logger.NewDefault()
	}

	breakerCfg := cfg.Breaker
	breakerCfg.OnStateChange = breakerTransitionHook(cfg.Metrics, log, cfg.Breaker.OnStateChange)

	if cfg.Transport.Headers == nil {
		cfg.Transport.Headers = make(map[string]string)
	}
	if _, ok := cfg.Transport.Headers["User-Agent"]; !ok {
		cfg.Transport.Headers["User-Agent"] = version.UserAgent()
	}

	f := &Factory{
		registry:   NewRegistry(),
		resolver:   resolver,
		breakers:   resilience.NewRegistry(breakerCfg, cfg.BreakerOverrides),
		dispatcher: NewDispatcher(resolver, transport.New(cfg.Transport), log),
		log:        log,
	}

	if cfg.Metrics != nil {
		f.middleware = append(f.middleware, middleware.NewMetrics(cfg.Metrics))
	}
	if cfg.Tracing {
		f.middleware = append(f.middleware, middleware.NewTracing())
	}
	if cfg.CacheStore != nil {
		cacheCfg := cfg.Cache
		if cfg.Metrics != nil {
			cacheCfg.OnHit = cacheHook(cfg.Metrics.RecordCacheHit, cfg.Cache.OnHit)
			cacheCfg.OnMiss = cacheHook(cfg.Metrics.RecordCacheMiss, cfg.Cache.OnMiss)
		}
		f.middleware = append(f.middleware, middleware.NewHTTPCache(cfg.CacheStore, cacheCfg, log))
	}
	f.middleware = append(f.middleware, middleware.NewCircuitBreaker(f.breakers, log))

	f.rebuild()
	return f
}

// Use appends middleware to the chain. Middleware run in registration
// order, first registered outermost; user middleware registered here wraps
// closer to the transport than the standard chain. Not safe to call
// concurrently with dispatches.
func (f *Factory) Use(mw ...pipeline.Middleware) {
	f.middleware = append(f.middleware, mw...)
	f.rebuild()
}

// Register adds a service contract to the factory.
func (f *Factory) Register(contract ServiceContract) error {
	return f.registry.Register(contract)
}

// Client returns a client bound to a registered service contract.
func (f *Factory) Client(service, version string) (*Client, error) {
	contract, err := f.registry.Contract(service, version)
	if err != nil {
		return nil, err
	}
	return &Client{factory: f, contract: contract}, nil
}

// Breakers exposes the breaker registry, mainly for inspection in tests
// and health endpoints.
func (f *Factory) Breakers() *resilience.Registry {
	return f.breakers
}

func (f *Factory) rebuild() {
	f.dispatch = pipeline.Chain(f.dispatcher.Dispatch, f.middleware...)
}

// breakerTransitionHook chains logging, metric recording and the caller's
// own hook into one OnStateChange callback.
func breakerTransitionHook(metrics *observability.Metrics, log *logger.Logger, user func(string, resilience.State, resilience.State)) func(string, resilience.State, resilience.State) {
	log = log.WithComponent("circuit_breaker")
	return func(endpoint string, from, to resilience.State) {
		log.Info("circuit state changed", logger.Fields(
			logger.FieldEndpoint, endpoint,
			logger.FieldCircuitState, to.String(),
			"previous_state", from.String(),
		))
		if metrics != nil {
			metrics.RecordCircuitTransition(context.Background(), endpoint, from.String(), to.String(), stateGauge(to))
		}
		if user != nil {
			user(endpoint, from, to)
		}
	}
}

func cacheHook(record func(context.Context, string), user func(string)) func(string) {
	return func(endpoint string) {
		record(context.Background(), endpoint)
		if user != nil {
			user(endpoint)
		}
	}
}

func stateGauge(s resilience.State) int64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}
