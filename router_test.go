package brisa

import (
	"testing"
	"time"

	"github.com/savsgio/brisa/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newTestServer(t *testing.T) *Atreugo {
	t.Helper()
	return New(Config{Debug: true})
}

func newTestCtx(method, uri string) *fasthttp.RequestCtx {
	var fctx fasthttp.RequestCtx
	fctx.Request.Header.SetMethod(method)
	fctx.Request.SetRequestURI(uri)
	return &fctx
}

// Registering GET /users/{id} and requesting GET /users/42 should return
// 200 with the bound parameter echoed back.
func TestRouterRoutingAndParams(t *testing.T) {
	s := newTestServer(t)
	s.GET("/users/{id}", func(ctx *RequestCtx) error {
		id, ok := ctx.Param("id")
		require.True(t, ok)
		return ctx.JSONResponse(JSON{"id": id})
	})

	fctx := newTestCtx(fasthttp.MethodGet, "/users/42")
	s.handleFastHTTP(fctx)

	assert.Equal(t, fasthttp.StatusOK, fctx.Response.StatusCode())
	assert.JSONEq(t, `{"id":"42"}`, string(fctx.Response.Body()))
}

// A route /users/{id} must not match /users/ (empty segment) or
// /users/a/b (too many segments).
func TestRouterDoesNotMatchWrongSegmentCount(t *testing.T) {
	s := newTestServer(t)
	s.GET("/users/{id}", func(ctx *RequestCtx) error {
		return ctx.TextResponse("matched")
	})

	for _, uri := range []string{"/users/", "/users/a/b"} {
		fctx := newTestCtx(fasthttp.MethodGet, uri)
		s.handleFastHTTP(fctx)
		assert.Equal(t, fasthttp.StatusNotFound, fctx.Response.StatusCode(), "uri=%s", uri)
	}
}

// Literal segments are preferred over a parameter sibling at the same node.
func TestRouterLiteralPreferredOverParam(t *testing.T) {
	s := newTestServer(t)
	s.GET("/users/{id}", func(ctx *RequestCtx) error { return ctx.TextResponse("param") })
	s.GET("/users/me", func(ctx *RequestCtx) error { return ctx.TextResponse("literal") })

	fctx := newTestCtx(fasthttp.MethodGet, "/users/me")
	s.handleFastHTTP(fctx)
	assert.Equal(t, "literal", string(fctx.Response.Body()))
}

// A path matches but no method does → 405 with an Allow header listing
// the registered methods.
func TestRouterMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	s.GET("/widgets", func(ctx *RequestCtx) error { return ctx.TextResponse("ok") })
	s.POST("/widgets", func(ctx *RequestCtx) error { return ctx.TextResponse("ok") })

	fctx := newTestCtx(fasthttp.MethodDelete, "/widgets")
	s.handleFastHTTP(fctx)

	assert.Equal(t, fasthttp.StatusMethodNotAllowed, fctx.Response.StatusCode())
	assert.Equal(t, "GET, POST", string(fctx.Response.Header.Peek(fasthttp.HeaderAllow)))
}

// A pre-middleware short-circuits the chain; the handler never runs, and
// post-middleware still observes the response.
func TestMiddlewareShortCircuit(t *testing.T) {
	s := newTestServer(t)

	handlerCalled := false
	postCalled := false

	s.UseBefore(func(ctx *RequestCtx) error {
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.Stop()
		return nil
	})
	s.UseAfter(func(ctx *RequestCtx) error {
		postCalled = true
		return nil
	})

	s.GET("/secret", func(ctx *RequestCtx) error {
		handlerCalled = true
		return ctx.TextResponse("leaked")
	})

	fctx := newTestCtx(fasthttp.MethodGet, "/secret")
	s.handleFastHTTP(fctx)

	assert.False(t, handlerCalled)
	assert.True(t, postCalled)
	assert.Equal(t, fasthttp.StatusForbidden, fctx.Response.StatusCode())
}

// Global middleware runs in priority order (lowest first), registration
// order breaking ties.
func TestMiddlewarePriorityOrdering(t *testing.T) {
	s := newTestServer(t)

	var order []string
	record := func(name string) MiddlewareFunc {
		return func(ctx *RequestCtx) error {
			order = append(order, name)
			return nil
		}
	}

	s.UseBefore(record("low-priority-first-registered"), 10)
	s.UseBefore(record("high-priority"), 1)
	s.UseBefore(record("same-priority-second"), 1)

	s.GET("/ping", func(ctx *RequestCtx) error { return ctx.TextResponse("pong") })

	fctx := newTestCtx(fasthttp.MethodGet, "/ping")
	s.handleFastHTTP(fctx)

	assert.Equal(t, []string{"high-priority", "same-priority-second", "low-priority-first-registered"}, order)
}

// Trailing slash is significant: /a and /a/ are different registered
// routes, and a parameter route does not match a trailing empty segment.
func TestRouterTrailingSlashIsSignificant(t *testing.T) {
	s := newTestServer(t)
	s.GET("/a", func(ctx *RequestCtx) error { return ctx.TextResponse("no-slash") })
	s.GET("/a/", func(ctx *RequestCtx) error { return ctx.TextResponse("with-slash") })
	s.GET("/users/{id}", func(ctx *RequestCtx) error { return ctx.TextResponse("param") })

	fctx := newTestCtx(fasthttp.MethodGet, "/a")
	s.handleFastHTTP(fctx)
	assert.Equal(t, "no-slash", string(fctx.Response.Body()))

	fctx = newTestCtx(fasthttp.MethodGet, "/a/")
	s.handleFastHTTP(fctx)
	assert.Equal(t, "with-slash", string(fctx.Response.Body()))

	fctx = newTestCtx(fasthttp.MethodGet, "/users/")
	s.handleFastHTTP(fctx)
	assert.Equal(t, fasthttp.StatusNotFound, fctx.Response.StatusCode())
}

// Repeated slashes in the request path are rejected as 400 unless the
// server is configured to normalize them.
func TestRouterRejectsDoubleSlashByDefault(t *testing.T) {
	s := newTestServer(t)
	s.GET("/a/b", func(ctx *RequestCtx) error { return ctx.TextResponse("ok") })

	fctx := newTestCtx(fasthttp.MethodGet, "/a//b")
	s.handleFastHTTP(fctx)
	assert.Equal(t, fasthttp.StatusBadRequest, fctx.Response.StatusCode())
}

func TestRouterNormalizesDoubleSlashWhenConfigured(t *testing.T) {
	cfg := Config{Debug: true}
	cfg.NormalizeDoubleSlashes = true
	s := New(cfg)
	s.GET("/a/b", func(ctx *RequestCtx) error { return ctx.TextResponse("ok") })

	fctx := newTestCtx(fasthttp.MethodGet, "/a//b")
	s.handleFastHTTP(fctx)
	assert.Equal(t, fasthttp.StatusOK, fctx.Response.StatusCode())
}

// A cacheable route serves a second identical request from the cache
// without re-invoking the handler.
func TestCacheableRouteServesFromCache(t *testing.T) {
	cfg := Config{Debug: true}
	cfg.Cache.L1Enabled = true
	s := New(cfg)

	calls := 0
	s.GET("/cached", func(ctx *RequestCtx) error {
		calls++
		return ctx.TextResponse("hello")
	}).Cacheable(cache.RoutePolicy{TTL: time.Minute})

	first := newTestCtx(fasthttp.MethodGet, "/cached")
	s.handleFastHTTP(first)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "hello", string(first.Response.Body()))

	second := newTestCtx(fasthttp.MethodGet, "/cached")
	s.handleFastHTTP(second)
	assert.Equal(t, 1, calls, "handler must not run again on a cache hit")
	assert.Equal(t, "hello", string(second.Response.Body()))
}
