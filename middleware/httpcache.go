package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mardiros/aioli/cachestore"
	"github.com/mardiros/aioli/logger"
	"github.com/mardiros/aioli/pipeline"
)

// CacheConfig configures the HTTP caching middleware.
type CacheConfig struct {
	// StaleWindow is how long entries carrying validators are retained in
	// the store past their freshness deadline, so stale hits can be
	// revalidated conditionally instead of refetched.
	StaleWindow time.Duration `mapstructure:"stale_window"`

	// OnHit and OnMiss, when set, are invoked with the endpoint key after
	// each cacheable request. A revalidated 304 counts as a hit.
	OnHit  func(endpoint string) `mapstructure:"-"`
	OnMiss func(endpoint string) `mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields.
func (c *CacheConfig) ApplyDefaults() {
	if c.StaleWindow == 0 {
		c.StaleWindow = time.Hour
	}
}

// HTTPCache serves repeated GETs from a response cache. Fresh entries are
// returned without any transport attempt; stale entries with validators are
// revalidated with conditional headers. Store failures are logged and the
// call proceeds to the wire.
type HTTPCache struct {
	store cachestore.Store
	cfg   CacheConfig
	log   *logger.Logger
	now   func() time.Time
}

var _ pipeline.Middleware = (*HTTPCache)(nil)

// NewHTTPCache creates the middleware over a response store.
func NewHTTPCache(store cachestore.Store, cfg CacheConfig, log *logger.Logger) *HTTPCache {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPCache{
		store: store,
		cfg:   cfg,
		log:   log.WithComponent("http_cache"),
		now:   time.Now,
	}
}

// Handle implements pipeline.Middleware.
func (m *HTTPCache) Handle(ctx context.Context, req *pipeline.Request, next pipeline.Next) pipeline.Outcome {
	if req.Method != http.MethodGet {
		return next(ctx, req)
	}

	baseKey := cacheKey(req)
	endpoint := req.Endpoint.String()
	now := m.now()

	entry, ok := m.lookup(ctx, baseKey, req)
	if ok && entry.IsFresh(now) {
		m.log.Debug("served from cache", logger.Fields(
			logger.FieldEndpoint, endpoint,
			logger.FieldCacheKey, baseKey,
		))
		m.hit(endpoint)
		return pipeline.Success(entry.Response())
	}

	if ok && entry.HasValidators() {
		if entry.ETag != "" {
			req.SetHeader("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			req.SetHeader("If-Modified-Since", entry.LastModified)
		}
	}

	out := next(ctx, req)

	if ok && out.Response != nil && out.Response.StatusCode == http.StatusNotModified {
		refreshed := m.refresh(entry, out.Response)
		m.storeResponse(ctx, baseKey, req, refreshed)
		m.hit(endpoint)
		return pipeline.Success(refreshed.Response())
	}

	if out.Kind == pipeline.KindSuccess {
		m.maybeStore(ctx, baseKey, req, out.Response)
	}
	m.miss(endpoint)
	return out
}

func (m *HTTPCache) hit(endpoint string) {
	if m.cfg.OnHit != nil {
		m.cfg.OnHit(endpoint)
	}
}

func (m *HTTPCache) miss(endpoint string) {
	if m.cfg.OnMiss != nil {
		m.cfg.OnMiss(endpoint)
	}
}

// lookup resolves the vary record for the base key, then the stored
// response under the varied key for this request.
func (m *HTTPCache) lookup(ctx context.Context, baseKey string, req *pipeline.Request) (*cachestore.Entry, bool) {
	varyRec, found, err := m.store.Get(ctx, baseKey)
	if err != nil {
		m.log.WithError(err).Warn("cache lookup failed", logger.Fields(logger.FieldCacheKey, baseKey))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var varyNames []string
	if len(varyRec.Body) > 0 {
		if err := json.Unmarshal(varyRec.Body, &varyNames); err != nil {
			m.log.WithError(err).Warn("corrupt vary record", logger.Fields(logger.FieldCacheKey, baseKey))
			return nil, false
		}
	}

	varyKey := variedKey(baseKey, req, varyNames)
	entry, found, err := m.store.Get(ctx, varyKey)
	if err != nil {
		m.log.WithError(err).Warn("cache lookup failed", logger.Fields(logger.FieldCacheKey, varyKey))
		return nil, false
	}
	if !found {
		return nil, false
	}
	return entry, true
}

// maybeStore records a 2xx response when its headers allow shared caching.
func (m *HTTPCache) maybeStore(ctx context.Context, baseKey string, req *pipeline.Request, resp *pipeline.Response) {
	now := m.now()
	fresh, cacheable := freshness(resp, now)
	if !cacheable {
		return
	}

	entry := &cachestore.Entry{
		StatusCode:   resp.StatusCode,
		Headers:      copyHeaders(resp.Headers()),
		Body:         resp.Body,
		FreshUntil:   now.Add(fresh),
		ETag:         resp.Header("Etag"),
		LastModified: resp.Header("Last-Modified"),
	}
	if fresh <= 0 && !entry.HasValidators() {
		return
	}
	m.storeResponse(ctx, baseKey, req, entry)
}

// storeResponse writes the vary record and the varied response entry with a
// shared TTL covering both freshness and the revalidation window.
func (m *HTTPCache) storeResponse(ctx context.Context, baseKey string, req *pipeline.Request, entry *cachestore.Entry) {
	varyNames, cacheable := parseVary(entry.Headers["Vary"])
	if !cacheable {
		return
	}

	ttl := entry.FreshUntil.Sub(m.now())
	if ttl < 0 {
		ttl = 0
	}
	if entry.HasValidators() {
		ttl += m.cfg.StaleWindow
	}
	if ttl <= 0 {
		return
	}

	varyBody, err := json.Marshal(varyNames)
	if err != nil {
		return
	}
	varyRec := &cachestore.Entry{Body: varyBody, FreshUntil: entry.FreshUntil}
	if err := m.store.Set(ctx, baseKey, varyRec, ttl); err != nil {
		m.log.WithError(err).Warn("cache store failed", logger.Fields(logger.FieldCacheKey, baseKey))
		return
	}

	varyKey := variedKey(baseKey, req, varyNames)
	if err := m.store.Set(ctx, varyKey, entry, ttl); err != nil {
		m.log.WithError(err).Warn("cache store failed", logger.Fields(logger.FieldCacheKey, varyKey))
	}
}

// refresh updates a stale entry from a 304 revalidation response. Header
// values present on the 304 replace the stored ones; absent freshness
// information keeps the entry stale so the next hit revalidates again.
func (m *HTTPCache) refresh(entry *cachestore.Entry, resp *pipeline.Response) *cachestore.Entry {
	now := m.now()
	refreshed := &cachestore.Entry{
		StatusCode:   entry.StatusCode,
		Headers:      copyHeaders(entry.Headers),
		Body:         entry.Body,
		FreshUntil:   now,
		ETag:         entry.ETag,
		LastModified: entry.LastModified,
	}
	for name, value := range resp.Headers() {
		refreshed.Headers[name] = value
	}
	if v := resp.Header("Etag"); v != "" {
		refreshed.ETag = v
	}
	if v := resp.Header("Last-Modified"); v != "" {
		refreshed.LastModified = v
	}
	if fresh, cacheable := freshness(resp, now); cacheable && fresh > 0 {
		refreshed.FreshUntil = now.Add(fresh)
	}
	return refreshed
}

// cacheKey identifies the resource: endpoint, expanded path and canonical
// query. Header-dependent variants hang off this key via the vary record.
func cacheKey(req *pipeline.Request) string {
	return req.Endpoint.String() + "|" + req.Path + "?" + req.CanonicalQuery()
}

// variedKey appends the request's values for the response's Vary headers.
func variedKey(baseKey string, req *pipeline.Request, varyNames []string) string {
	var b strings.Builder
	b.WriteString(baseKey)
	b.WriteByte('$')
	for i, name := range varyNames {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(req.Header(name))
	}
	return b.String()
}

func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		out[name] = value
	}
	return out
}
