package core

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/searchktools/segserve/core/http"
	"github.com/searchktools/segserve/core/observability"
	"github.com/searchktools/segserve/core/pools"
	"github.com/searchktools/segserve/core/router"
)

// drainTimeout bounds how long a connection waits for the peer to close
// after the response has been written
const drainTimeout = 500 * time.Millisecond

// Server accepts TCP connections and hands each one to the worker pool as a
// single task: read one request line, dispatch it, write the response, close.
type Server struct {
	router  *router.Router
	pool    *pools.WorkerPool
	monitor *observability.Monitor
	logger  *zap.Logger

	maxConns      int
	reusePort     bool
	metricsOff    bool
	slowThreshold time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMonitor records dispatch metrics into m
func WithMonitor(m *observability.Monitor) Option {
	return func(s *Server) {
		if m != nil {
			s.monitor = m
		}
	}
}

// WithMetrics turns per-route dispatch metrics on or off
func WithMetrics(on bool) Option {
	return func(s *Server) { s.metricsOff = !on }
}

// WithSlowThreshold sets the average latency above which a route is reported
// as a bottleneck in the stats
func WithSlowThreshold(d time.Duration) Option {
	return func(s *Server) { s.slowThreshold = d }
}

// WithMaxConns caps concurrently open connections; 0 means unlimited
func WithMaxConns(n int) Option {
	return func(s *Server) { s.maxConns = n }
}

// WithReusePort sets SO_REUSEPORT on the listening socket where supported
func WithReusePort(on bool) Option {
	return func(s *Server) { s.reusePort = on }
}

// WithReadTimeout bounds how long a connection may take to send its request line
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithWriteTimeout bounds how long writing the response may take
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// NewServer creates a server dispatching through r on pool p
func NewServer(r *router.Router, p *pools.WorkerPool, opts ...Option) *Server {
	s := &Server{
		router:        r,
		pool:          p,
		monitor:       observability.NewMonitor(),
		logger:        zap.NewNop(),
		slowThreshold: 100 * time.Millisecond,
		readTimeout:   10 * time.Second,
		writeTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metricsOff {
		s.monitor.SetEnabled(false)
	}
	return s
}

// Listen opens a TCP listener on addr with the server's socket options
func (s *Server) Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlFunc(s.reusePort)}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	return ln, nil
}

// ListenAndServe listens on addr and serves until Shutdown
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := s.Listen(ctx, addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve seals the router and accepts connections on ln until Shutdown. It
// returns ErrServerClosed after a Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return ErrServerRunning
	}
	s.listener = ln
	s.mu.Unlock()

	// No registration once connections can arrive
	s.router.Seal()

	s.logger.Info("server listening",
		zap.Stringer("addr", ln.Addr()),
		zap.Int("workers", s.pool.Workers()),
		zap.Int("routes", len(s.router.Routes())),
	)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			// Transient accept failure (e.g. EMFILE); retry with backoff
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(backoff*2, time.Second)
			}
			s.logger.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := s.pool.Submit(func() { s.handleConn(conn) }); err != nil {
			s.logger.Error("submit connection", zap.Error(err))
			conn.Close()
			if errors.Is(err, pools.ErrPoolClosed) {
				return err
			}
		}
	}
}

// Shutdown stops accepting connections. Connections already handed to the
// pool finish on their own; closing the pool is left to its owner.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Addr returns the listening address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Monitor returns the dispatch metrics recorder
func (s *Server) Monitor() *observability.Monitor {
	return s.monitor
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleConn serves exactly one request on conn
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	log := s.logger.With(
		zap.String("conn", uuid.NewString()),
		zap.Stringer("remote", conn.RemoteAddr()),
	)

	if s.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	req, err := http.ReadRequestLine(bufio.NewReader(conn))
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			// Peer closed without sending a request
		case errors.Is(err, os.ErrDeadlineExceeded):
			log.Info("request line timeout", zap.Duration("timeout", s.readTimeout))
			s.respond(conn, log, http.StatusRequestTimeout, "")
		default:
			log.Warn("bad request line", zap.Error(err))
			s.respond(conn, log, http.StatusBadRequest, "")
		}
		return
	}

	log = log.With(zap.String("method", req.Method), zap.String("path", req.Path))

	method := router.Method(req.Method)
	start := time.Now()
	handler, err := s.router.Lookup(method, req.Path)
	if err != nil {
		s.monitor.RecordRequest(unmatchedRoute, time.Since(start), true)
		if errors.Is(err, router.ErrMethodNotSupported) {
			log.Info("method not supported")
			s.respond(conn, log, http.StatusMethodNotAllowed, "")
		} else {
			log.Info("no route available")
			s.respond(conn, log, http.StatusNotFound, "")
		}
		return
	}

	// Slash variants of one route share a metrics entry
	var body string
	err = s.monitor.Trace(string(method)+" "+router.CleanPath(req.Path), func() error {
		var herr error
		body, herr = handler()
		return herr
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Error("handler failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		s.respond(conn, log, http.StatusInternalServerError, "")
		return
	}
	s.respond(conn, log, http.StatusOK, body)
	log.Debug("request served", zap.Duration("elapsed", elapsed), zap.Int("bytes", len(body)))
}

// respond writes the response then half-closes and drains, so unread request
// bytes do not turn the close into a reset that discards the response
func (s *Server) respond(conn net.Conn, log *zap.Logger, code int, body string) {
	if s.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	var err error
	if code == http.StatusOK {
		err = http.WriteResponse(conn, body)
	} else {
		err = http.WriteError(conn, code)
	}
	if err != nil {
		log.Warn("write response", zap.Error(err))
		return
	}

	if tc, ok := conn.(interface{ CloseWrite() error }); ok {
		if tc.CloseWrite() == nil {
			_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
			_, _ = io.Copy(io.Discard, conn)
		}
	}
}
