package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/searchktools/segserve/config"
	"github.com/searchktools/segserve/core"
	"github.com/searchktools/segserve/core/pools"
	"github.com/searchktools/segserve/core/router"
	"github.com/searchktools/segserve/logs"
)

// App wires the worker pool, router and server from configuration
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pools.WorkerPool
	router *router.Router
	server *core.Server
}

// New creates an application instance. Routes are registered on Router()
// before Run.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logs.Init("segserve", cfg.Log)

	pool, err := pools.NewWorkerPool(cfg.Pool.Workers, pools.WithLogger(logger.Named("pool")))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	r := router.NewRouter()
	server := core.NewServer(r, pool,
		core.WithLogger(logger.Named("server")),
		core.WithMaxConns(cfg.Server.MaxConns),
		core.WithReusePort(cfg.Server.ReusePort),
		core.WithReadTimeout(cfg.Server.ReadTimeout),
		core.WithWriteTimeout(cfg.Server.WriteTimeout),
		core.WithMetrics(cfg.Stats.Metrics),
		core.WithSlowThreshold(cfg.Stats.SlowThreshold),
	)

	if cfg.Stats.Enabled {
		if err := r.GET(cfg.Stats.Path, server.StatsHandler(cfg.Stats.Format)); err != nil {
			pool.Close()
			return nil, fmt.Errorf("register stats route: %w", err)
		}
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		router: r,
		server: server,
	}, nil
}

// Router returns the router for route registration
func (a *App) Router() *router.Router {
	return a.router
}

// Server returns the underlying server
func (a *App) Server() *core.Server {
	return a.server
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then stops
// accepting, drains the pool and returns
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := a.server.Listen(ctx, a.cfg.Addr())
	if err != nil {
		a.pool.Close()
		return fmt.Errorf("listen %s: %w", a.cfg.Addr(), err)
	}

	for _, route := range a.router.Routes() {
		a.logger.Debug("route", zap.String("method", string(route.Method)), zap.String("path", route.Path))
	}
	a.logger.Info("starting", zap.String("env", a.cfg.Env), zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Serve(ln) }()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
		_ = a.server.Shutdown()
		serveErr = <-errCh
	case serveErr = <-errCh:
	}

	a.pool.Close()
	_ = logs.Sync()

	if errors.Is(serveErr, core.ErrServerClosed) {
		return nil
	}
	return serveErr
}
