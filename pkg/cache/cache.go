// Package cache provides a Redis-backed store of API responses keyed
// by endpoint and query, used for ETag conditional requests.
//
// GitHub returns 304 Not Modified for a matching If-None-Match header,
// and 304 responses do not count against the rate limit, so every
// revalidation hit hands a call back to the pool's quota. Entries are
// kept with a fixed retention TTL purely to bound Redis growth;
// freshness is always delegated to the server via the ETag.
package cache

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultRetention is how long entries are kept for revalidation.
const DefaultRetention = 24 * time.Hour

// Key identifies one cached API response.
type Key struct {
	// Endpoint is the API path (e.g. "/users/octocat/events/public").
	Endpoint string

	// Query holds the request's query parameters.
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: ghactivity:cache:endpoint:param1=val1:param2=val2
func (k Key) String() string {
	parts := []string{"ghactivity", "cache"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// Entry is one cached API response body plus its validator.
type Entry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// ETag for If-None-Match revalidation.
	ETag string `json:"etag"`

	// NextPage preserves the Link continuation of the cached page; a
	// 304 revalidation carries no Link header of its own.
	NextPage string `json:"next_page,omitempty"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`
}
