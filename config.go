package brisa

import (
	"crypto/tls"
	"net"
	"os"
	"time"

	"github.com/savsgio/brisa/cache"
	"github.com/savsgio/brisa/tasks"
	"github.com/valyala/fasthttp"
)

// Config configures a server instance.
//
// Default settings should satisfy the majority of users. Adjust settings
// only if you understand the consequences — most fields pass straight
// through to the embedded fasthttp.Server.
type Config struct { // nolint:maligned
	Addr string

	// TLS/SSL options.
	TLSEnable bool
	CertKey   string
	CertFile  string
	TLSConfig *tls.Config

	// Name is sent in the Server response header. Default: "brisa".
	Name string

	// Logger is optional; a slog-backed default is used otherwise.
	Logger Logger

	// Debug lowers the default logger's level to debug and includes error
	// cause detail in error response bodies. No per-request trace lines are
	// logged.
	Debug bool

	// Network is one of "tcp", "tcp4", "tcp6", "unix". Default: "tcp4".
	Network string

	// Prefork runs one child process per CPU core.
	//
	// WARNING: using prefork prevents sharing of in-process state such as
	// the L1 cache and DI singletons across cores.
	Prefork bool

	// Reuseport sets SO_REUSEPORT on the listener.
	Reuseport bool

	// GracefulShutdown closes listeners and waits for in-flight connections
	// to go idle before returning from Shutdown.
	GracefulShutdown bool

	// GracefulShutdownSignals defaults to SIGINT, SIGTERM.
	GracefulShutdownSignals []os.Signal

	// Compress transparently compresses response bodies when the client
	// advertises a supported Accept-Encoding.
	Compress bool

	// NotFoundView is invoked when no route matches. Defaults to a JSON 404.
	NotFoundView View

	// MethodNotAllowedView is invoked when a path matches but no method
	// does. The Allow header is already set when this is invoked.
	MethodNotAllowedView View

	// ErrorView handles an error returned by a View or middleware.
	ErrorView ErrorView

	// PanicView handles a panic recovered from a View.
	PanicView PanicView

	custom struct {
		chmodUnixSocketFunc  func(filepath string) error
		newPreforkServerFunc func(s *Atreugo) preforkServer
	}

	// --- fasthttp server configuration passthroughs ---

	HeaderReceived     func(header *fasthttp.RequestHeader) fasthttp.RequestConfig
	ContinueHandler    func(header *fasthttp.RequestHeader) bool
	Concurrency        int
	ReadBufferSize     int
	WriteBufferSize    int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxConnsPerIP      int
	MaxRequestsPerConn int
	TCPKeepalivePeriod time.Duration
	DisableKeepalive   bool
	TCPKeepalive       bool
	ConnState          func(net.Conn, fasthttp.ConnState)
	FormValueFunc      fasthttp.FormValueFunc

	// --- HTTP parser limits ---

	// MaxRequestURILength bounds request-URI length. Default 8 KiB.
	MaxRequestURILength int

	// MaxHeaderCount bounds the number of headers. Default 100.
	MaxHeaderCount int

	// MaxHeaderBytes bounds total header bytes. Default 16 KiB.
	MaxHeaderBytes int

	// MaxRequestBodySize bounds a request body. Default 10 MiB. A request
	// whose Content-Length exceeds it is rejected with 413 before dispatch,
	// also when StreamRequestBody is set.
	MaxRequestBodySize int

	// StreamRequestBody enables request body streaming.
	StreamRequestBody bool

	// NormalizeDoubleSlashes, when true, collapses "//" in request paths
	// instead of rejecting them with 400.
	NormalizeDoubleSlashes bool

	// RequestTimeout bounds total end-to-end request processing. On expiry
	// a 504 is written if possible and the connection closed.
	RequestTimeout time.Duration

	// --- tiered response cache ---

	Cache cache.Config

	// --- background task executor ---

	Tasks tasks.Config
}

// defaultConfig fills zero-valued fields with sensible defaults.
func defaultConfig(cfg Config) Config {
	if cfg.Name == "" {
		cfg.Name = "brisa"
	}
	if cfg.Network == "" {
		cfg.Network = "tcp4"
	}
	if cfg.MaxRequestURILength == 0 {
		cfg.MaxRequestURILength = 8 * 1024
	}
	if cfg.MaxHeaderCount == 0 {
		cfg.MaxHeaderCount = 100
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = 16 * 1024
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = 10 * 1024 * 1024
	}
	if len(cfg.GracefulShutdownSignals) == 0 {
		cfg.GracefulShutdownSignals = defaultShutdownSignals()
	}
	cfg.Cache = cache.WithDefaults(cfg.Cache)
	cfg.Tasks = tasks.WithDefaults(cfg.Tasks)
	return cfg
}
