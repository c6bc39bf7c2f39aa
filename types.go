// Package brisa implements a high-performance HTTP application framework:
// a trie-based router, a priority-ordered middleware engine, a tiered
// response cache, a static-file engine with a hot in-memory cache, a
// dependency-injection container, and a priority-scheduled background-task
// executor, all layered over a fasthttp acceptor/parser.
package brisa

import (
	"time"

	"github.com/savsgio/gotils/nocopy"
	"github.com/valyala/fasthttp"
)

// Logger is used for logging messages. The default implementation wraps
// log/slog; callers may substitute their own.
type Logger interface {
	Print(v ...interface{})
	Printf(format string, args ...interface{})
}

type preforkServer interface {
	ListenAndServe(addr string) error
}

// RequestCtx wraps fasthttp.RequestCtx, adding pipeline bookkeeping: the
// middleware short-circuit flag, the route match (handler + bound
// parameters), and a handle to the request-scoped DI resolution context.
//
// It is prohibited to copy RequestCtx values. Create new values instead.
//
// A View must not retain a RequestCtx after it returns unless it first
// calls ctx.TimeoutError().
type RequestCtx struct {
	noCopy nocopy.NoCopy // nolint:structcheck,unused

	*fasthttp.RequestCtx

	// next is not read or written by the pipeline; a short-circuit is
	// tracked by skipView.
	next bool

	// skipView is set by Stop when a pre-middleware short-circuits the
	// chain, so the remaining pre-middleware and the route's View are
	// skipped.
	skipView bool

	params []routeParam

	scope *requestScope

	matchedRoute string

	cacheDirectives *CacheDirectives
}

// SetCacheDirectives overrides the response-cache inclusion decision for
// this request: a handler or middleware calls this to mark its response as
// Cache-Control: no-store/private, or to override the route's default TTL.
func (ctx *RequestCtx) SetCacheDirectives(d CacheDirectives) {
	ctx.cacheDirectives = &d
	switch {
	case d.NoStore && d.Private:
		ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store, private")
	case d.NoStore:
		ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "no-store")
	case d.Private:
		ctx.Response.Header.Set(fasthttp.HeaderCacheControl, "private")
	}
}

type routeParam struct {
	name  string
	value string
}

// Param returns the decoded value bound to a path parameter, and whether it
// was present on the matched route.
func (ctx *RequestCtx) Param(name string) (string, bool) {
	for _, p := range ctx.params {
		if p.name == name {
			return p.value, true
		}
	}
	return "", false
}

// Stop short-circuits the pre-middleware chain: a pre-middleware that has
// already written a response onto ctx calls Stop to skip the remaining
// pre-middleware and the handler. The post-chain still runs over the
// response the middleware produced.
func (ctx *RequestCtx) Stop() {
	ctx.skipView = true
}

// Stopped reports whether the chain has been short-circuited.
func (ctx *RequestCtx) Stopped() bool {
	return ctx.skipView
}

// MatchedRoute returns the "method path-pattern" string of the route that
// matched this request, e.g. "GET /users/{id}".
func (ctx *RequestCtx) MatchedRoute() string {
	return ctx.matchedRoute
}

// Scope returns the request-scoped dependency-injection resolution context.
func (ctx *RequestCtx) Scope() *requestScope {
	return ctx.scope
}

// View must process incoming requests.
type View func(*RequestCtx) error

// ErrorView must process the error returned by a View or middleware.
type ErrorView func(*RequestCtx, error, int)

// PanicView must process panics recovered from views, if configured.
type PanicView func(*RequestCtx, interface{})

// JSON is a map whose key is a string and whose value is an interface,
// returned by a handler to be marshaled as application/json.
type JSON map[string]interface{}

// PathRewriteFunc rewrites the path used to resolve a file under a
// StaticFS mount. The returned path must not escape the mount root.
type PathRewriteFunc func(ctx *RequestCtx) []byte

// StaticFS configures a static-file mount: safety checks, index/listing
// behavior, compression, byte-range and conditional GET support, and the
// hot in-memory cache of small files.
type StaticFS struct {
	// Root is the directory served at Prefix.
	Root string

	// Prefix is the URL path prefix this mount answers under.
	Prefix string

	// IndexNames lists candidate index files tried, in order, when a
	// request resolves to a directory.
	IndexNames []string

	// GenerateIndexPages serves an auto-generated HTML directory listing
	// when the directory has no index file.
	GenerateIndexPages bool

	// AllowHiddenFiles serves dotfiles; otherwise they 404.
	AllowHiddenFiles bool

	// Compress gzip-encodes compressible responses for clients that
	// advertise support.
	Compress bool

	// CompressLevel is the gzip level (1-9); 0 uses the library default.
	CompressLevel int

	// PathRewrite optionally rewrites the resolved path before safety
	// checks, e.g. to strip the mount prefix differently than the default.
	PathRewrite PathRewriteFunc

	// PathNotFound, if set, replaces the default 404 body for a path that
	// resolves to nothing under Root.
	PathNotFound View

	// CacheDuration is the browser-facing Cache-Control max-age advertised
	// for served files.
	CacheDuration time.Duration

	// MaxFileSize rejects (404) any file whose size exceeds this limit. 0
	// means unbounded.
	MaxFileSize int64

	// Hot cache of small files served from memory.
	HotCacheMaxFileSize int64
	HotCacheMaxBytes    int64
	HotCacheTTL         time.Duration
}

// CacheDirectives influences both response-cache inclusion and the
// client-facing Cache-Control header.
type CacheDirectives struct {
	// NoStore mirrors Cache-Control: no-store — never cache this response.
	NoStore bool

	// Private mirrors Cache-Control: private — never cache this response.
	Private bool

	// TTL overrides the route's default cache TTL for this response.
	TTL time.Duration
}
