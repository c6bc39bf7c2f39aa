// Package cache implements a tiered response cache: an in-process L1 LRU
// with TTL, an optional distributed L2, and an optional on-disk L3, with
// promotion on miss and a deterministic key fingerprint over the request.
package cache

import "time"

// Config configures the tiered cache for a server.
type Config struct {
	// L1 in-process tier.
	L1Enabled    bool
	L1MaxBytes   int64
	L1MaxEntries int
	L1TTL        time.Duration

	// L2 optional distributed tier (redis via redigo).
	L2Enabled bool
	L2Addr    string
	L2TTL     time.Duration

	// L3 optional on-disk tier.
	L3Enabled bool
	L3Dir     string
	L3MaxSize int64
	L3TTL     time.Duration

	// CacheableMethods defaults to GET, HEAD.
	CacheableMethods []string

	// CacheableStatuses defaults to 200, 301, 302, 404.
	CacheableStatuses []int

	// QueryDenylist lists volatile query parameters stripped before
	// canonicalizing the query for key derivation (e.g. "utm_source").
	QueryDenylist []string

	// DefaultVaryHeaders are included in the key fingerprint for every
	// route unless overridden by RoutePolicy.VaryHeaders.
	DefaultVaryHeaders []string

	// SingleFlight enables request de-duplication on a cache miss: concurrent
	// misses for the same key collapse into a single origin call, and the
	// result is fanned out to all waiters.
	SingleFlight bool
}

// WithDefaults fills zero-valued fields with sensible defaults.
func WithDefaults(cfg Config) Config {
	if cfg.L1MaxBytes == 0 {
		cfg.L1MaxBytes = 64 * 1024 * 1024
	}
	if cfg.L1MaxEntries == 0 {
		cfg.L1MaxEntries = 100_000
	}
	if cfg.L1TTL == 0 {
		cfg.L1TTL = 60 * time.Second
	}
	if cfg.L2TTL == 0 {
		cfg.L2TTL = 5 * time.Minute
	}
	if cfg.L3MaxSize == 0 {
		cfg.L3MaxSize = 512 * 1024 * 1024
	}
	if cfg.L3TTL == 0 {
		cfg.L3TTL = 24 * time.Hour
	}
	if len(cfg.CacheableMethods) == 0 {
		cfg.CacheableMethods = []string{"GET", "HEAD"}
	}
	if len(cfg.CacheableStatuses) == 0 {
		cfg.CacheableStatuses = []int{200, 301, 302, 404}
	}
	if len(cfg.DefaultVaryHeaders) == 0 {
		cfg.DefaultVaryHeaders = []string{"Accept", "Accept-Encoding"}
	}
	return cfg
}

// RoutePolicy is the per-route cache policy supplied at route registration.
type RoutePolicy struct {
	TTL                time.Duration
	VaryHeaders        []string
	CacheAuthenticated bool
}
