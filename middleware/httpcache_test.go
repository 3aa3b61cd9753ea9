package middleware

import (
	"context"
	"testing"

	"github.com/mardiros/aioli/cachestore"
	"github.com/mardiros/aioli/pipeline"
)

func cacheableNext(calls *int, headers map[string]string, body string) pipeline.Next {
	return func(ctx context.Context, req *pipeline.Request) pipeline.Outcome {
		*calls++
		return pipeline.Success(pipeline.NewResponse(200, headers, []byte(body)))
	}
}

func TestHTTPCache_ServesFreshFromCache(t *testing.T) {
	mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

	calls := 0
	next := cacheableNext(&calls, map[string]string{"Cache-Control": "public, max-age=60"}, "cached body")

	out := mw.Handle(context.Background(), newTestRequest(), next)
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if calls != 1 {
		t.Fatalf("expected transport call on first request, got %d", calls)
	}

	out = mw.Handle(context.Background(), newTestRequest(), next)
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if calls != 1 {
		t.Fatalf("expected second request served from cache, got %d transport calls", calls)
	}
	if string(out.Response.Body) != "cached body" {
		t.Fatalf("unexpected cached body %q", out.Response.Body)
	}
}

func TestHTTPCache_NonGETBypasses(t *testing.T) {
	mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

	calls := 0
	next := cacheableNext(&calls, map[string]string{"Cache-Control": "public, max-age=60"}, "created")

	req := newTestRequest()
	req.Method = "POST"
	mw.Handle(context.Background(), req, next)
	mw.Handle(context.Background(), req, next)
	if calls != 2 {
		t.Fatalf("expected POSTs to bypass the cache, got %d transport calls", calls)
	}
}

func TestHTTPCache_UncacheableDirectives(t *testing.T) {
	for _, cc := range []string{"no-store", "private, max-age=60", "max-age=60"} {
		mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

		calls := 0
		next := cacheableNext(&calls, map[string]string{"Cache-Control": cc}, "body")

		mw.Handle(context.Background(), newTestRequest(), next)
		mw.Handle(context.Background(), newTestRequest(), next)
		if calls != 2 {
			t.Fatalf("cache-control %q: expected no caching, got %d transport calls", cc, calls)
		}
	}
}

func TestHTTPCache_AgeReducesFreshness(t *testing.T) {
	mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

	calls := 0
	next := cacheableNext(&calls, map[string]string{"Cache-Control": "public, max-age=60", "Age": "60"}, "body")

	mw.Handle(context.Background(), newTestRequest(), next)
	mw.Handle(context.Background(), newTestRequest(), next)
	if calls != 2 {
		t.Fatalf("expected fully aged response not to be served from cache, got %d transport calls", calls)
	}
}

func TestHTTPCache_QueryIsPartOfTheKey(t *testing.T) {
	mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

	calls := 0
	next := cacheableNext(&calls, map[string]string{"Cache-Control": "public, max-age=60"}, "body")

	first := newTestRequest()
	first.Query = map[string]string{"page": "1"}
	second := newTestRequest()
	second.Query = map[string]string{"page": "2"}

	mw.Handle(context.Background(), first, next)
	mw.Handle(context.Background(), second, next)
	if calls != 2 {
		t.Fatalf("expected distinct queries to miss, got %d transport calls", calls)
	}

	mw.Handle(context.Background(), first, next)
	if calls != 2 {
		t.Fatalf("expected repeated query to hit, got %d transport calls", calls)
	}
}

func TestHTTPCache_VaryDifferentiatesByHeader(t *testing.T) {
	mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

	calls := 0
	next := cacheableNext(&calls, map[string]string{
		"Cache-Control": "public, max-age=60",
		"Vary":          "Accept-Encoding",
	}, "body")

	gzip := newTestRequest()
	gzip.SetHeader("Accept-Encoding", "gzip")
	brotli := newTestRequest()
	brotli.SetHeader("Accept-Encoding", "br")

	mw.Handle(context.Background(), gzip, next)
	mw.Handle(context.Background(), brotli, next)
	if calls != 2 {
		t.Fatalf("expected differing vary values to miss, got %d transport calls", calls)
	}

	again := newTestRequest()
	again.SetHeader("Accept-Encoding", "gzip")
	mw.Handle(context.Background(), again, next)
	if calls != 2 {
		t.Fatalf("expected matching vary value to hit, got %d transport calls", calls)
	}
}

func TestHTTPCache_RevalidatesStaleWithETag(t *testing.T) {
	mw := NewHTTPCache(cachestore.NewMemoryStore(), CacheConfig{}, nil)

	calls := 0
	first := func(ctx context.Context, req *pipeline.Request) pipeline.Outcome {
		calls++
		return pipeline.Success(pipeline.NewResponse(200, map[string]string{
			"Cache-Control": "public, max-age=0",
			"Etag":          `"v1"`,
		}, []byte("original")))
	}
	mw.Handle(context.Background(), newTestRequest(), first)
	if calls != 1 {
		t.Fatalf("expected transport call, got %d", calls)
	}

	revalidations := 0
	second := func(ctx context.Context, req *pipeline.Request) pipeline.Outcome {
		revalidations++
		if got := req.Header("If-None-Match"); got != `"v1"` {
			t.Fatalf("expected conditional request with stored etag, got %q", got)
		}
		return pipeline.HTTPFailure(pipeline.NewResponse(304, nil, nil))
	}
	out := mw.Handle(context.Background(), newTestRequest(), second)
	if revalidations != 1 {
		t.Fatalf("expected one revalidation, got %d", revalidations)
	}
	if out.Kind != pipeline.KindSuccess {
		t.Fatalf("expected 304 to surface the stored response, got %s", out.Kind)
	}
	if string(out.Response.Body) != "original" {
		t.Fatalf("unexpected body %q", out.Response.Body)
	}
}

func TestHTTPCache_HitAndMissHooks(t *testing.T) {
	hits, misses := 0, 0
	cfg := CacheConfig{
		OnHit:  func(endpoint string) { hits++ },
		OnMiss: func(endpoint string) { misses++ },
	}
	mw := NewHTTPCache(cachestore.NewMemoryStore(), cfg, nil)

	calls := 0
	next := cacheableNext(&calls, map[string]string{"Cache-Control": "public, max-age=60"}, "body")

	mw.Handle(context.Background(), newTestRequest(), next)
	mw.Handle(context.Background(), newTestRequest(), next)

	if misses != 1 {
		t.Fatalf("expected 1 miss, got %d", misses)
	}
	if hits != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
}
