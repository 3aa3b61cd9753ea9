package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mardiros/aioli/pipeline"
)

// cacheDirectives holds parsed Cache-Control directives keyed by lowercased
// name. Valueless directives map to "".
type cacheDirectives map[string]string

func parseCacheControl(value string) cacheDirectives {
	directives := make(cacheDirectives)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, found := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !found {
			directives[name] = ""
			continue
		}
		directives[name] = strings.Trim(strings.TrimSpace(val), `"`)
	}
	return directives
}

func (d cacheDirectives) has(name string) bool {
	_, ok := d[name]
	return ok
}

func (d cacheDirectives) seconds(name string) (int, bool) {
	val, ok := d[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// freshness computes how long the response may be served without
// revalidation. The second return is false when the response must not be
// stored at all. Shared-cache semantics: only responses marked public (or
// carrying an Expires date) are stored, and the Age header is subtracted
// from max-age.
func freshness(resp *pipeline.Response, now time.Time) (time.Duration, bool) {
	directives := parseCacheControl(resp.Header("Cache-Control"))
	if directives.has("no-store") || directives.has("private") {
		return 0, false
	}

	if directives.has("public") {
		if maxAge, ok := directives.seconds("max-age"); ok {
			age := 0
			if v := resp.Header("Age"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					age = n
				}
			}
			ttl := maxAge - age
			if ttl < 0 {
				ttl = 0
			}
			return time.Duration(ttl) * time.Second, true
		}
	}

	if v := resp.Header("Expires"); v != "" {
		if expires, err := http.ParseTime(v); err == nil {
			ttl := expires.Sub(now)
			if ttl < 0 {
				ttl = 0
			}
			return ttl, true
		}
	}

	return 0, false
}

// parseVary splits a Vary header into canonical-ish lowercased header
// names. A "*" value means the response is uncacheable.
func parseVary(value string) ([]string, bool) {
	if value == "" {
		return nil, true
	}
	var names []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if part == "*" {
			return nil, false
		}
		names = append(names, part)
	}
	return names, true
}
