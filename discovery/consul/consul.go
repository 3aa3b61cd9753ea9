// Package consul implements discovery against a consul-compatible catalog.
// Service names are formatted as "{service}-{version}" by default; when
// several instances host a service, one is chosen at random.
package consul

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/mardiros/aioli/discovery"
	"github.com/mardiros/aioli/logger"
)

// Resolver resolves services by querying a consul catalog for healthy
// instances.
type Resolver struct {
	client *api.Client
	cfg    Config
	log    *logger.Logger

	mu sync.Mutex
	r  *rand.Rand
}

// NewResolver creates a consul-backed Resolver from the given Config.
func NewResolver(cfg Config, log *logger.Logger) (*Resolver, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Addr
	apiCfg.Scheme = cfg.Scheme
	apiCfg.Token = cfg.Token
	if cfg.Datacenter != "" {
		apiCfg.Datacenter = cfg.Datacenter
	}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}

	return &Resolver{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("consul"),
		r:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Resolve queries the catalog for healthy instances of (service, version)
// and picks one at random.
func (r *Resolver) Resolve(ctx context.Context, service, version string) (discovery.ServiceAddress, error) {
	name := r.catalogName(service, version)

	entries, _, err := r.client.Health().Service(name, "", true, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return discovery.ServiceAddress{}, fmt.Errorf("%w: %v", discovery.ErrBackendUnavailable, err)
	}
	if len(entries) == 0 {
		return discovery.ServiceAddress{}, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, name)
	}

	r.mu.Lock()
	entry := entries[r.r.Intn(len(entries))]
	r.mu.Unlock()

	return entryToAddress(entry, service, version, r.cfg.ServiceScheme), nil
}

// Watch emits the resolved address whenever catalog membership changes,
// using consul blocking queries. The channel closes on context cancel.
func (r *Resolver) Watch(ctx context.Context, service string) (<-chan discovery.ServiceAddress, error) {
	name := r.catalogName(service, "")
	ch := make(chan discovery.ServiceAddress, 1)

	go func() {
		defer close(ch)
		var lastIndex uint64
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			opts := (&api.QueryOptions{WaitIndex: lastIndex, WaitTime: 30 * time.Second}).WithContext(ctx)
			entries, meta, err := r.client.Health().Service(name, "", true, opts)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Warn("consul watch error", logger.Fields(
					logger.FieldService, service,
					logger.FieldError, err.Error(),
				))
				time.Sleep(time.Second)
				continue
			}

			if meta.LastIndex == lastIndex || len(entries) == 0 {
				continue
			}
			lastIndex = meta.LastIndex

			r.mu.Lock()
			entry := entries[r.r.Intn(len(entries))]
			r.mu.Unlock()

			select {
			case ch <- entryToAddress(entry, service, "", r.cfg.ServiceScheme):
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (r *Resolver) catalogName(service, version string) string {
	format := r.cfg.ServiceNameFormat
	if version == "" {
		format = r.cfg.UnversionedServiceNameFormat
	}
	return strings.NewReplacer("{service}", service, "{version}", version).Replace(format)
}

func entryToAddress(e *api.ServiceEntry, service, version, scheme string) discovery.ServiceAddress {
	host := e.Service.Address
	if host == "" {
		host = e.Node.Address
	}
	return discovery.ServiceAddress{
		Name:    service,
		Version: version,
		Scheme:  scheme,
		Host:    host,
		Port:    e.Service.Port,
	}
}

// Compile-time checks.
var (
	_ discovery.Resolver = (*Resolver)(nil)
	_ discovery.Watcher  = (*Resolver)(nil)
)
