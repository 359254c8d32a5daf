package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskquest/blob"
	"taskquest/cache"
	"taskquest/config"
	"taskquest/handler"
	"taskquest/remote"
	"taskquest/repository"
	"taskquest/services"
	"taskquest/storage"
	"taskquest/usecase"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout     = 10 * time.Second
	maintenanceInterval = time.Hour
)

// app holds the open stores and the repositories built on them.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store
	remote *remote.Store
	redis  *redis.Client
	repos  *repository.Repositories
	checks map[string]func(context.Context) error
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// openApp opens the local store and, when configured, the remote document
// store and Redis. A remote or Redis that cannot be reached is logged and
// left out; the local store is required.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		checks: map[string]func(context.Context) error{
			"sqlite": func(ctx context.Context) error { return store.DB().PingContext(ctx) },
		},
	}
	opts := repository.Options{
		Tokens:          services.NewTokenIssuer(cfg.JWT),
		AttachmentDir:   cfg.AttachmentDir,
		LeaderboardSize: cfg.LeaderboardSize,
		Logger:          logger,
	}

	if cfg.Database.Enabled() {
		rs, err := remote.Connect(ctx, cfg.Database, cfg.RequestTimeout, logger)
		if err != nil {
			logger.Warn("remote store unavailable, running local only", "error", err)
		} else {
			a.remote = rs
			opts.Remote = rs
			opts.Blob = blob.NewGridFS(rs.Database(), cfg.BlobBucket, cfg.RequestTimeout)
			a.checks["mongo"] = rs.Ping
		}
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, caches disabled", "error", err)
		} else {
			a.redis = client
			opts.Leaderboard = cache.NewLeaderboard(client, 0)
			opts.Revoker = cache.NewTokenBlacklist(client)
			opts.Sessions = cache.NewSessionCache(client)
			a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	a.repos = repository.New(store, opts)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.remote.Disconnect(ctx); err != nil {
			a.logger.Warn("disconnect remote store", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close sqlite", "error", err)
	}
}

// serve runs the HTTP server and the maintenance loop until ctx is done or
// SIGINT/SIGTERM arrives, then drains in-flight requests.
func (a *app) serve(ctx context.Context, corsOrigins []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := handler.New(a.repos, usecase.NewTaskService(a.repos.Tasks, nil), handler.Options{
		Logger:          a.logger,
		LeaderboardSize: a.cfg.LeaderboardSize,
		HealthChecks:    a.checks,
	})
	// Streams run until their request context ends, so shutdown cancels the
	// base context every request derives from.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           h.Router(corsOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancelBase)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.maintain(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// maintain rolls the stats periods over on a fixed interval so weekly and
// monthly buckets empty even for users who stay idle.
func (a *app) maintain(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := a.repos.Stats.ResetPeriods(ctx)
			if n, ok := res.Value(); ok {
				a.logger.Debug("stats periods rolled over", "users", n)
			}
		}
	}
}
