package brisa

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savsgio/brisa/cache"
	"github.com/savsgio/brisa/tasks"
	"github.com/savsgio/gotils/nocopy"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

// Atreugo implements the high-performance HTTP application server: an
// acceptor embedding a fasthttp.Server, dispatching matched requests
// through the router, middleware engine, and dispatcher.
//
// It is prohibited to copy Atreugo values. Create new values instead.
type Atreugo struct {
	noCopy nocopy.NoCopy // nolint:structcheck,unused

	engine *fasthttp.Server
	cfg    Config
	log    Logger

	virtualHosts map[string]fasthttp.RequestHandler

	container *Container
	respCache *cache.Tiered
	taskPool  *tasks.Pool
	metrics   *Metrics

	*Router
}

// defaultShutdownSignals returns the OS signals that trigger graceful
// shutdown when Config.GracefulShutdownSignals is unset.
func defaultShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// slogLogger adapts *slog.Logger to the Logger interface so the default
// logger is structured without requiring callers to supply their own.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Print(v ...interface{})            { s.l.Info(fmt.Sprint(v...)) }
func (s slogLogger) Printf(format string, a ...interface{}) { s.l.Info(fmt.Sprintf(format, a...)) }

// New creates a new server instance ready to have routes registered on it.
func New(cfg Config) *Atreugo {
	cfg = defaultConfig(cfg)

	if cfg.Logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		cfg.Logger = slogLogger{l: slog.New(handler)}
	}

	container := NewContainer()

	router := NewRouter(&routerConfig{
		errorView:            cfg.ErrorView,
		notFoundView:         cfg.NotFoundView,
		methodNotAllowedView: cfg.MethodNotAllowedView,
		panicView:            cfg.PanicView,
		debug:                cfg.Debug,
		logger:               cfg.Logger,
		maxRequestURILength:    cfg.MaxRequestURILength,
		maxHeaderCount:         cfg.MaxHeaderCount,
		maxHeaderBytes:         cfg.MaxHeaderBytes,
		maxRequestBodySize:     cfg.MaxRequestBodySize,
		requestTimeout:         cfg.RequestTimeout,
		cacheCfg:               cfg.Cache,
		normalizeDoubleSlashes: cfg.NormalizeDoubleSlashes,
	}, container)

	s := &Atreugo{
		cfg:          cfg,
		log:          cfg.Logger,
		virtualHosts: make(map[string]fasthttp.RequestHandler),
		container:    container,
		Router:       router,
	}

	if cfg.Cache.L1Enabled || cfg.Cache.L2Enabled || cfg.Cache.L3Enabled {
		tiered, err := cache.New(cfg.Cache)
		if err != nil {
			cfg.Logger.Printf("brisa: response cache disabled: %v", err)
		} else {
			s.respCache = tiered
			router.setCache(tiered)
		}
	}

	s.taskPool = tasks.New(cfg.Tasks)
	s.metrics = NewMetrics(s.taskPool)

	handler := fasthttp.RequestHandler(s.handleFastHTTP)
	if cfg.Compress {
		// Server-wide transparent compression: gzip/deflate the
		// handler-generated body when the client advertises support,
		// independent of the static engine's own per-file Compress knob.
		handler = fasthttp.CompressHandler(handler)
	}
	if cfg.RequestTimeout > 0 {
		// Global request-level deadline: on expiry fasthttp writes a 504
		// and the connection is closed, using the same goroutine/timer
		// race runWithRouteTimeout uses for a per-route override.
		handler = fasthttp.TimeoutWithCodeHandler(handler, cfg.RequestTimeout, "request timed out", fasthttp.StatusGatewayTimeout)
	}

	s.engine = &fasthttp.Server{
		Name:               cfg.Name,
		HeaderReceived:     cfg.HeaderReceived,
		ContinueHandler:    cfg.ContinueHandler,
		Concurrency:        cfg.Concurrency,
		ReadBufferSize:     cfg.ReadBufferSize,
		WriteBufferSize:    cfg.WriteBufferSize,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
		MaxConnsPerIP:      cfg.MaxConnsPerIP,
		MaxRequestsPerConn: cfg.MaxRequestsPerConn,
		TCPKeepalivePeriod: cfg.TCPKeepalivePeriod,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		DisableKeepalive:   cfg.DisableKeepalive,
		TCPKeepalive:       cfg.TCPKeepalive,
		StreamRequestBody:  cfg.StreamRequestBody,
		ConnState:          cfg.ConnState,
		FormValueFunc:      cfg.FormValueFunc,
		Logger:             stdLogAdapter{cfg.Logger},
		Handler:            handler,
	}

	return s
}

// stdLogAdapter satisfies fasthttp's expected *log.Logger-shaped interface.
type stdLogAdapter struct{ l Logger }

func (a stdLogAdapter) Printf(format string, args ...interface{}) { a.l.Printf(format, args...) }

// Container exposes the server's dependency-injection container so callers
// can register services before the server starts handling requests.
func (s *Atreugo) Container() *Container { return s.container }

// Tasks exposes the server's background task executor, used to submit
// work for asynchronous, priority-scheduled execution.
func (s *Atreugo) Tasks() *tasks.Pool { return s.taskPool }

// Metrics exposes the server's Prometheus registry for mounting a
// /metrics endpoint.
func (s *Atreugo) Metrics() *Metrics { return s.metrics }

// VirtualHost dispatches requests whose Host header matches host to router
// instead of the server's default router (SUPPLEMENTED FEATURES).
func (s *Atreugo) VirtualHost(host string, router *Router) {
	s.virtualHosts[host] = func(fctx *fasthttp.RequestCtx) {
		s.dispatchRouter(router, fctx)
	}
}

// handleFastHTTP is the single fasthttp.RequestHandler installed on the
// embedded server; it resolves virtual hosts, then falls through to the
// default router.
func (s *Atreugo) handleFastHTTP(fctx *fasthttp.RequestCtx) {
	if len(s.virtualHosts) > 0 {
		if h, ok := s.virtualHosts[string(fctx.Host())]; ok {
			h(fctx)
			return
		}
	}
	s.dispatchRouter(s.Router, fctx)
}

// ListenAndServe blocks the caller until the server is shut down.
func (s *Atreugo) ListenAndServe() error {
	if s.cfg.Addr == "" {
		return fmt.Errorf("brisa: Config.Addr must be set")
	}

	if s.cfg.Prefork {
		newPrefork := s.cfg.custom.newPreforkServerFunc
		if newPrefork == nil {
			newPrefork = newRealPreforkServer
		}
		return newPrefork(s).ListenAndServe(s.cfg.Addr)
	}

	if s.cfg.GracefulShutdown {
		return s.listenAndServeGraceful()
	}

	if s.cfg.Reuseport {
		network := s.cfg.Network
		if network == "" {
			network = "tcp4"
		}
		ln, err := reuseportListen(network, s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("brisa: reuseport listen: %w", err)
		}
		return s.Serve(ln)
	}

	if s.cfg.Network == "unix" {
		return s.listenAndServeUnix()
	}

	if s.cfg.TLSEnable {
		return s.engine.ListenAndServeTLS(s.cfg.Addr, s.cfg.CertFile, s.cfg.CertKey)
	}

	return s.engine.ListenAndServe(s.cfg.Addr)
}

// listenAndServeUnix binds a unix domain socket at cfg.Addr, removing a
// stale socket file left by a previous instance, then chmods it (via
// cfg.custom.chmodUnixSocketFunc if set, else the documented 0666 default)
// before serving.
func (s *Atreugo) listenAndServeUnix() error {
	if err := os.Remove(s.cfg.Addr); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("brisa: removing stale unix socket: %w", err)
	}

	ln, err := net.Listen("unix", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("brisa: unix listen: %w", err)
	}

	chmod := s.cfg.custom.chmodUnixSocketFunc
	if chmod == nil {
		chmod = func(path string) error { return os.Chmod(path, os.FileMode(0666)) }
	}
	if err := chmod(s.cfg.Addr); err != nil {
		return fmt.Errorf("brisa: chmod unix socket: %w", err)
	}

	return s.Serve(ln)
}

func (s *Atreugo) listenAndServeGraceful() error {
	ctx, stop := signal.NotifyContext(context.Background(), s.cfg.GracefulShutdownSignals...)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if s.cfg.TLSEnable {
			err = s.engine.ListenAndServeTLS(s.cfg.Addr, s.cfg.CertFile, s.cfg.CertKey)
		} else {
			err = s.engine.ListenAndServe(s.cfg.Addr)
		}
		if err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Print("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.engine.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

// Serve runs the server on a caller-supplied listener, e.g. one produced by
// a prefork or SO_REUSEPORT wrapper around the configured Network/Addr.
func (s *Atreugo) Serve(ln net.Listener) error {
	if s.cfg.TLSEnable {
		tlsConfig := s.cfg.TLSConfig
		if tlsConfig == nil {
			cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.CertKey)
			if err != nil {
				return fmt.Errorf("brisa: loading TLS certificate: %w", err)
			}
			tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
		}
		ln = tls.NewListener(ln, tlsConfig)
	}
	return s.engine.Serve(ln)
}

// Shutdown gracefully shuts down the server without interrupting active
// connections, then releases the response cache's resources (redis pool,
// L3 lock file).
func (s *Atreugo) Shutdown() error {
	err := s.engine.Shutdown()
	if s.taskPool != nil {
		s.taskPool.Shutdown()
	}
	if s.respCache != nil {
		if cerr := s.respCache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
