package brisa

import (
	"time"

	"github.com/savsgio/brisa/cache"
	"github.com/valyala/fasthttp"
)

// cacheableRequest reports whether route has a cache policy and this
// request qualifies for the cache path: the method must be in the
// configured cacheable set, and the request must not carry credentials
// unless the route explicitly opts in with CacheAuthenticated.
func (s *Atreugo) cacheableRequest(r *Router, route *compiledRoute, ctx *RequestCtx) (cache.RoutePolicy, bool) {
	if route.cachePolicy == nil || r.core.cache == nil {
		return cache.RoutePolicy{}, false
	}
	policy := *route.cachePolicy

	if !stringSliceContains(r.core.cfg.cacheCfg.CacheableMethods, string(ctx.Method())) {
		return policy, false
	}

	if !policy.CacheAuthenticated {
		if len(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)) > 0 {
			return policy, false
		}
		if len(ctx.Request.Header.Peek(fasthttp.HeaderCookie)) > 0 {
			return policy, false
		}
	}

	return policy, true
}

func stringSliceContains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// dispatchCached serves route through the tiered cache: a hit writes the
// stored response directly; a miss runs the chain (once per key across
// concurrent requests when the cache's SingleFlight option is set) and
// stores the result for subsequent requests.
func (s *Atreugo) dispatchCached(r *Router, route *compiledRoute, ctx *RequestCtx, policy cache.RoutePolicy, run func() error) error {
	cfg := r.core.cfg

	varyHeaders := policy.VaryHeaders
	if len(varyHeaders) == 0 {
		varyHeaders = cfg.cacheCfg.DefaultVaryHeaders
	}

	rawPath := string(ctx.Request.URI().PathOriginal())
	rawQuery := string(ctx.URI().QueryString())

	key := cache.Key(string(ctx.Method()), rawPath, rawQuery, varyHeaders,
		func(name string) string { return string(ctx.Request.Header.Peek(name)) },
		cfg.cacheCfg.QueryDenylist)

	ttl := policy.TTL

	_, hit := r.core.cache.Get(key)
	s.metrics.observeCacheHit(hit)

	entry, err := r.core.cache.GetOrCompute(key, ttl, func() (cache.Entry, error) {
		if err := run(); err != nil {
			return cache.Entry{}, err
		}
		return s.captureEntry(ctx, cfg), nil
	})
	if err != nil {
		return err
	}

	writeEntry(ctx.RequestCtx, entry)
	return nil
}

// captureEntry snapshots the response a completed chain wrote onto ctx into
// a cache.Entry, honoring an explicit SetCacheDirectives override or the
// server's configured cacheable-status list.
func (s *Atreugo) captureEntry(ctx *RequestCtx, cfg *routerConfig) cache.Entry {
	status := ctx.Response.StatusCode()

	noStore := false
	if ctx.cacheDirectives != nil {
		noStore = ctx.cacheDirectives.NoStore || ctx.cacheDirectives.Private
	}
	if !stringSliceContainsInt(cfg.cacheCfg.CacheableStatuses, status) {
		noStore = true
	}

	header := make(map[string][]string)
	ctx.Response.Header.VisitAll(func(key, value []byte) {
		k := string(key)
		header[k] = append(header[k], string(value))
	})

	ttl := time.Duration(0)
	if ctx.cacheDirectives != nil && ctx.cacheDirectives.TTL > 0 {
		ttl = ctx.cacheDirectives.TTL
	}

	return cache.Entry{
		Body:    append([]byte(nil), ctx.Response.Body()...),
		Status:  status,
		Header:  header,
		TTL:     ttl,
		NoStore: noStore,
	}
}

func stringSliceContainsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// writeEntry replays a cached response onto fctx.
func writeEntry(fctx *fasthttp.RequestCtx, e cache.Entry) {
	fctx.SetStatusCode(e.Status)
	for name, values := range e.Header {
		for _, v := range values {
			fctx.Response.Header.Add(name, v)
		}
	}
	fctx.SetBody(e.Body)
}
