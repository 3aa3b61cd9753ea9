// Package cachestore defines the keyed store that backs the HTTP caching
// middleware, with an in-memory implementation for single-process use and a
// Redis implementation for cross-process sharing of cached responses.
package cachestore

import (
	"context"
	"time"

	"github.com/mardiros/aioli/pipeline"
)

// Entry is one stored response. Entries are immutable once written and
// replaced wholesale on update.
type Entry struct {
	// StatusCode, Headers and Body reproduce the stored response.
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`

	// FreshUntil is the freshness deadline derived from the response's
	// cache-control directives.
	FreshUntil time.Time `json:"fresh_until"`

	// ETag and LastModified are the validators used for conditional
	// revalidation once the entry turns stale.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// IsFresh reports whether the entry may be served without revalidation.
func (e *Entry) IsFresh(now time.Time) bool {
	return now.Before(e.FreshUntil)
}

// HasValidators reports whether the entry can be revalidated conditionally.
func (e *Entry) HasValidators() bool {
	return e.ETag != "" || e.LastModified != ""
}

// Response rebuilds the stored response.
func (e *Entry) Response() *pipeline.Response {
	return pipeline.NewResponse(e.StatusCode, e.Headers, e.Body)
}

// Store is the external keyed store consulted by the caching middleware.
// Implementations may be shared across processes; Get returning (nil,
// false, nil) means the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
