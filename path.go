package brisa

import (
	"time"

	"github.com/savsgio/brisa/cache"
	"github.com/savsgio/gotils/nocopy"
)

// compiledRoute is what the trie stores at a leaf for one (method, path).
// It is mutated in place by the Path builder returned from registration,
// so chaining .UseBefore(...).UseAfter(...) after Router.GET/POST/etc.
// affects the exact route just registered.
type compiledRoute struct {
	method      string
	url         string
	handler     View
	middlewares Middlewares

	withTimeout bool
	timeout     time.Duration
	timeoutMsg  string
	timeoutCode int

	cachePolicy *cache.RoutePolicy
}

// Path is the fluent per-route configuration builder returned from
// registration (`server.GET(...).UseBefore(fn).UseAfter(fn)`).
//
// It is prohibited to copy Path values.
type Path struct {
	noCopy nocopy.NoCopy // nolint:structcheck,unused

	router *Router
	route  *compiledRoute
}

// UseBefore attaches per-route pre-middleware, run in registration order
// after all global pre-middleware and before the handler.
func (p *Path) UseBefore(fns ...MiddlewareFunc) *Path {
	p.route.middlewares.Before = append(p.route.middlewares.Before, fns...)
	return p
}

// UseAfter attaches per-route post-middleware, run in registration order
// after the handler and before global post-middleware.
func (p *Path) UseAfter(fns ...MiddlewareFunc) *Path {
	p.route.middlewares.After = append(p.route.middlewares.After, fns...)
	return p
}

// Skip excludes named global middleware from this route's compiled chain.
func (p *Path) Skip(fns ...MiddlewareFunc) *Path {
	p.route.middlewares.Skip = append(p.route.middlewares.Skip, fns...)
	return p
}

// WithTimeout overrides the request-level timeout for this route only,
// writing timeoutCode/timeoutMsg if the handler doesn't complete in time.
func (p *Path) WithTimeout(d time.Duration, msg string, code int) *Path {
	p.route.withTimeout = true
	p.route.timeout = d
	p.route.timeoutMsg = msg
	p.route.timeoutCode = code
	return p
}

// Cacheable enables tiered response caching for this route with the given
// policy.
func (p *Path) Cacheable(policy cache.RoutePolicy) *Path {
	p.route.cachePolicy = &policy
	return p
}
