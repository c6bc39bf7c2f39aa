package brisa

import (
	"fmt"
	"time"

	"github.com/savsgio/brisa/cache"
	routertrie "github.com/savsgio/brisa/router"
	"github.com/savsgio/gotils/nocopy"
	"github.com/valyala/fasthttp"
)

// routerConfig carries the server-wide settings a Router needs to dispatch
// a request: error hooks, parser limits, and the ambient logger/debug flag.
// It is built once in New and shared (read-only after startup) by every
// Router/group built from it.
type routerConfig struct {
	errorView             ErrorView
	notFoundView          View
	methodNotAllowedView  View
	panicView             PanicView
	debug                 bool
	logger                Logger

	maxRequestURILength    int
	maxHeaderCount         int
	maxHeaderBytes         int
	maxRequestBodySize     int
	normalizeDoubleSlashes bool

	requestTimeout time.Duration

	cacheCfg cache.Config
}

// routerCore is the state shared by a Router and every group derived from it
// via NewGroup: the compiled trie, the global middleware engine, the
// server-wide config, the DI container, and the optional response cache.
type routerCore struct {
	tree      *routertrie.Tree[*compiledRoute]
	mw        *middlewareEngine
	cfg       *routerConfig
	container *Container
	cache     *cache.Tiered

	staticMounts []*staticMount
}

// Router is the handler-registration surface: register (method,
// path-pattern, handler, optional per-route middleware, optional cache
// policy), and dispatch an incoming request through the compiled trie.
//
// It is prohibited to copy Router values. Create new values, or a group via
// NewGroup, instead.
type Router struct {
	noCopy nocopy.NoCopy // nolint:structcheck,unused

	core   *routerCore
	prefix string
}

// NewRouter builds a Router with an empty trie and middleware engine.
func NewRouter(cfg *routerConfig, container *Container) *Router {
	return &Router{
		core: &routerCore{
			tree:      routertrie.New[*compiledRoute](),
			mw:        &middlewareEngine{},
			cfg:       cfg,
			container: container,
		},
	}
}

// NewGroup returns a Router scoped under prefix, sharing this router's trie,
// global middleware, config, container, and cache with its parent.
func (r *Router) NewGroup(prefix string) *Router {
	return &Router{core: r.core, prefix: r.prefix + prefix}
}

func (r *Router) setCache(t *cache.Tiered) { r.core.cache = t }

// UseBefore registers global pre-phase middleware, run in priority order
// (lowest first) before every route's handler. priority defaults to 0.
func (r *Router) UseBefore(fn MiddlewareFunc, priority ...int) *Router {
	r.core.mw.addBefore(fn, "", firstOr(priority, 0))
	return r
}

// UseAfter registers global post-phase middleware, run in priority order
// after every route's handler.
func (r *Router) UseAfter(fn MiddlewareFunc, priority ...int) *Router {
	r.core.mw.addAfter(fn, "", firstOr(priority, 0))
	return r
}

func firstOr(vals []int, fallback int) int {
	if len(vals) > 0 {
		return vals[0]
	}
	return fallback
}

func (r *Router) handle(method, path string, view View) *Path {
	full := joinPath(r.prefix, path)
	route := &compiledRoute{method: method, url: full, handler: view}

	if err := r.core.tree.Insert(method, full, route); err != nil {
		if r.core.cfg != nil && r.core.cfg.logger != nil {
			r.core.cfg.logger.Printf("brisa: %v", err)
		}
	}

	return &Path{router: r, route: route}
}

// hasDoubleSlash reports whether the raw, un-normalized request path
// contains a repeated "/". fctx.Path() itself is already slash-collapsed
// by the underlying transport's URI parsing, so the check must run
// against PathOriginal, the same raw bytes the cache key is derived from.
func hasDoubleSlash(fctx *fasthttp.RequestCtx) bool {
	raw := fctx.Request.URI().PathOriginal()
	for i := 1; i < len(raw); i++ {
		if raw[i] == '/' && raw[i-1] == '/' {
			return true
		}
	}
	return false
}

func joinPath(prefix, path string) string {
	if prefix == "" {
		return path
	}
	if path == "/" {
		return prefix
	}
	return prefix + path
}

// GET registers view for an HTTP GET at path.
func (r *Router) GET(path string, view View) *Path { return r.handle(fasthttp.MethodGet, path, view) }

// POST registers view for an HTTP POST at path.
func (r *Router) POST(path string, view View) *Path { return r.handle(fasthttp.MethodPost, path, view) }

// PUT registers view for an HTTP PUT at path.
func (r *Router) PUT(path string, view View) *Path { return r.handle(fasthttp.MethodPut, path, view) }

// DELETE registers view for an HTTP DELETE at path.
func (r *Router) DELETE(path string, view View) *Path {
	return r.handle(fasthttp.MethodDelete, path, view)
}

// PATCH registers view for an HTTP PATCH at path.
func (r *Router) PATCH(path string, view View) *Path {
	return r.handle(fasthttp.MethodPatch, path, view)
}

// HEAD registers view for an HTTP HEAD at path.
func (r *Router) HEAD(path string, view View) *Path { return r.handle(fasthttp.MethodHead, path, view) }

// OPTIONS registers view for an HTTP OPTIONS at path.
func (r *Router) OPTIONS(path string, view View) *Path {
	return r.handle(fasthttp.MethodOptions, path, view)
}

// dispatchRouter is the request entry point shared by the default router
// and any VirtualHost router: enforce parser limits, look the request up
// in the trie, bind parameters, run the cache short-circuit or the
// middleware chain, and map any error to a response.
func (s *Atreugo) dispatchRouter(r *Router, fctx *fasthttp.RequestCtx) {
	cfg := r.core.cfg

	if rejected := enforceParserLimits(fctx, cfg); rejected {
		return
	}

	if !cfg.normalizeDoubleSlashes && hasDoubleSlash(fctx) {
		writeErrorBody(fctx, NewError(KindProtocol, "repeated slashes in path"), cfg.debug)
		fctx.SetConnectionClose()
		return
	}

	method := string(fctx.Method())
	path := string(fctx.Path()) // percent-decoded and slash-normalized

	if method == fasthttp.MethodGet || method == fasthttp.MethodHead {
		if mount := r.core.matchStatic(path); mount != nil {
			start := time.Now()
			ctx := &RequestCtx{RequestCtx: fctx, scope: newRequestScope(), matchedRoute: "STATIC " + mount.prefix}
			mount.engine.serve(ctx)
			s.metrics.observeRequest(method, mount.prefix+"*", fmt.Sprintf("%d", fctx.Response.StatusCode()), time.Since(start))
			return
		}
	}

	result, found := r.core.tree.Lookup(method, path)
	if !found {
		if len(result.Allowed) > 0 {
			s.writeMethodNotAllowed(fctx, cfg, result.Allowed)
			return
		}
		s.writeNotFound(fctx, cfg)
		return
	}

	route := result.Handler
	ctx := &RequestCtx{
		RequestCtx:   fctx,
		scope:        newRequestScope(),
		matchedRoute: method + " " + route.url,
	}
	for _, p := range result.Params {
		ctx.params = append(ctx.params, routeParam{name: p.Name, value: p.Value})
	}

	start := time.Now()
	defer func() {
		s.metrics.observeRequest(method, route.url, fmt.Sprintf("%d", fctx.Response.StatusCode()), time.Since(start))
	}()

	defer func() {
		if rec := recover(); rec != nil {
			if cfg.logger != nil {
				cfg.logger.Printf("brisa: panic recovered: %v", rec)
			}
			if cfg.panicView != nil {
				cfg.panicView(ctx, rec)
				return
			}
			writeErrorBody(fctx, Errorf(KindHandler, "panic: %v", rec), cfg.debug)
		}
	}()

	run := func() error {
		return runChain(ctx, r.core.mw.before, r.core.mw.after, route, cfg.logger)
	}

	var err error
	if route.withTimeout {
		err = s.runWithRouteTimeout(ctx, route, run)
	} else if policy, cacheable := s.cacheableRequest(r, route, ctx); cacheable {
		err = s.dispatchCached(r, route, ctx, policy, run)
	} else {
		err = run()
	}

	if err != nil {
		s.writeHandlerError(ctx, cfg, err)
	}
}

// runWithRouteTimeout enforces a per-route timeout override by running the
// chain on a worker goroutine and racing it against a timer, the same
// pattern fasthttp.TimeoutHandler uses for its server-wide equivalent.
func (s *Atreugo) runWithRouteTimeout(ctx *RequestCtx, route *compiledRoute, run func() error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- Errorf(KindHandler, "panic: %v", rec)
				return
			}
		}()
		done <- run()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(route.timeout):
		code := route.timeoutCode
		if code == 0 {
			code = fasthttp.StatusGatewayTimeout
		}
		msg := route.timeoutMsg
		if msg == "" {
			msg = "request timed out"
		}
		return Errorf(KindTimeout, "%s", msg).WithDetails(map[string]any{"status": code})
	}
}

func (s *Atreugo) writeNotFound(fctx *fasthttp.RequestCtx, cfg *routerConfig) {
	if cfg.notFoundView != nil {
		ctx := &RequestCtx{RequestCtx: fctx, scope: newRequestScope()}
		if err := cfg.notFoundView(ctx); err != nil && cfg.logger != nil {
			cfg.logger.Printf("brisa: notFoundView error: %v", err)
		}
		return
	}
	writeErrorBody(fctx, NewError(KindNotFound, "not found"), cfg.debug)
}

func (s *Atreugo) writeMethodNotAllowed(fctx *fasthttp.RequestCtx, cfg *routerConfig, allowed []string) {
	fctx.Response.Header.Set(fasthttp.HeaderAllow, joinComma(allowed))
	if cfg.methodNotAllowedView != nil {
		ctx := &RequestCtx{RequestCtx: fctx, scope: newRequestScope()}
		if err := cfg.methodNotAllowedView(ctx); err != nil && cfg.logger != nil {
			cfg.logger.Printf("brisa: methodNotAllowedView error: %v", err)
		}
		return
	}
	writeErrorBody(fctx, NewError(KindMethodNotAllowed, "method not allowed"), cfg.debug)
}

func joinComma(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func (s *Atreugo) writeHandlerError(ctx *RequestCtx, cfg *routerConfig, err error) {
	brisaErr := AsError(err)

	// A per-route timeout carries its configured status code in Details.
	status := brisaErr.StatusCode()
	if code, ok := brisaErr.Details["status"].(int); ok && brisaErr.Kind == KindTimeout {
		status = code
	}

	if cfg.errorView != nil {
		cfg.errorView(ctx, brisaErr, status)
		return
	}
	writeErrorBody(ctx.RequestCtx, brisaErr, cfg.debug)
	ctx.SetStatusCode(status)
}

func writeErrorBody(fctx *fasthttp.RequestCtx, e *Error, debug bool) {
	fctx.SetStatusCode(e.StatusCode())
	fctx.SetContentType("application/json; charset=utf-8")
	body := e.Body(debug)
	fmt.Fprintf(fctx, `{"error":%q,"message":%q}`, body.Error, body.Message)
}

// enforceParserLimits rejects requests exceeding the configured URI/header
// bounds, writing the prescribed error and closing the connection.
// Returns true if the request was rejected.
func enforceParserLimits(fctx *fasthttp.RequestCtx, cfg *routerConfig) bool {
	if cfg.maxRequestURILength > 0 && len(fctx.RequestURI()) > cfg.maxRequestURILength {
		writeErrorBody(fctx, NewError(KindProtocol, "request-uri too long"), cfg.debug)
		fctx.SetConnectionClose()
		return true
	}

	if cfg.maxHeaderCount > 0 || cfg.maxHeaderBytes > 0 {
		count, bytes := 0, 0
		fctx.Request.Header.VisitAll(func(key, value []byte) {
			count++
			bytes += len(key) + len(value)
		})
		if cfg.maxHeaderCount > 0 && count > cfg.maxHeaderCount {
			writeErrorBody(fctx, NewError(KindHeadersTooLarge, "too many headers"), cfg.debug)
			fctx.SetConnectionClose()
			return true
		}
		if cfg.maxHeaderBytes > 0 && bytes > cfg.maxHeaderBytes {
			writeErrorBody(fctx, NewError(KindHeadersTooLarge, "headers too large"), cfg.debug)
			fctx.SetConnectionClose()
			return true
		}
	}

	if cfg.maxRequestBodySize > 0 && fctx.Request.Header.ContentLength() > cfg.maxRequestBodySize {
		writeErrorBody(fctx, NewError(KindPayloadTooLarge, "request body too large"), cfg.debug)
		fctx.SetConnectionClose()
		return true
	}

	return false
}
