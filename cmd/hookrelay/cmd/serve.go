package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/hookrelay/pkg/accounts"
	"github.com/platinummonkey/hookrelay/pkg/api"
	"github.com/platinummonkey/hookrelay/pkg/async"
	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/destinations"
	"github.com/platinummonkey/hookrelay/pkg/middleware"
	"github.com/platinummonkey/hookrelay/pkg/observability"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/users"
	"github.com/platinummonkey/hookrelay/pkg/webhooks"
)

// Version is set at build time
var Version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hookrelay API server and dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}

		backend, err := cache.NewBackend(cfg.Cache)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to create cache backend: %w", err)
		}
		logger.WithField("backend", cfg.Cache.Backend).Info("cache ready")

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(registry)
		caches := cache.NewGroup(backend, cfg.Cache.ListTTL, metrics, logger)

		accountStore := accounts.NewStore(db)
		userSvc := users.NewService(users.NewStore(db), users.NewTokenStore(db), auth.NewPasswordHasher(cfg.Auth.BcryptCost), caches, logger)
		accountSvc := accounts.NewService(accountStore, caches, logger)
		destSvc := destinations.NewService(destinations.NewStore(db), caches, logger)
		logStore := webhooks.NewLogStore(db)

		dispatcher := webhooks.NewDispatcher(ctx, cfg.Dispatch, destSvc, logStore, caches, metrics, logger)
		gateway := webhooks.NewGateway(accountStore, backend, cfg.Cache.DedupTTL, dispatcher, metrics, logger)

		retention, err := webhooks.NewRetention(cfg.Retention, logStore, caches, metrics, logger)
		if err != nil {
			dispatcher.Shutdown(time.Second)
			backend.Close()
			db.Close()
			return fmt.Errorf("failed to configure log retention: %w", err)
		}
		retention.Start()
		if retention.Enabled() {
			async.SafeGo(ctx, logger, time.Minute, "initial log purge", func(ctx context.Context) error {
				_, err := retention.RunOnce(ctx)
				return err
			})
		}

		limiter, limitCfg := newLimiter(ctx, backend)

		apiCfg := api.Config{
			Users:        userSvc,
			Accounts:     accountSvc,
			Destinations: destSvc,
			Logs:         webhooks.NewLogService(logStore, caches, logger),
			Gateway:      gateway,
			Resolver:     rbac.NewResolver(accountStore),
			Limiter:      limiter,
			RateLimit:    limitCfg,
			Health:       observability.NewHealthChecker(db, backend, Version),
			Metrics:      metrics,
			Logger:       logger,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}
		if cfg.Observability.MetricsEnabled {
			apiCfg.Gatherer = registry
		}

		server := &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      api.NewServer(apiCfg),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		// Order matters: in-flight deliveries still write logs
		shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
		shutdown.RegisterShutdownFunc(retention.Stop)
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			timeout := cfg.Server.ShutdownTimeout
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
			return dispatcher.Shutdown(timeout)
		})
		shutdown.RegisterShutdownFunc(func(context.Context) error { return backend.Close() })
		shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

		serveErr := make(chan error, 1)
		go func() {
			logger.WithFields(logrus.Fields{"addr": server.Addr, "version": Version}).Info("starting hookrelay")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
				cancel()
			}
		}()

		shutdownErr := shutdown.WaitForShutdown(ctx)
		select {
		case err := <-serveErr:
			return fmt.Errorf("server failed: %w", err)
		default:
			return shutdownErr
		}
	},
}

// newLimiter picks the distributed limiter when redis is shared between
// replicas and the in-process token bucket otherwise
func newLimiter(ctx context.Context, backend cache.Backend) (middleware.Limiter, *middleware.RateLimitConfig) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	limitCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerSecond,
		WindowDuration:    time.Second,
		BurstSize:         cfg.RateLimit.Burst,
	}
	if redisBackend, ok := backend.(*cache.RedisBackend); ok {
		return middleware.NewDistributedRateLimiter(redisBackend.Client(), limitCfg, "hookrelay"), limitCfg
	}
	local := middleware.NewRateLimiter(limitCfg)
	local.StartCleanup(ctx, time.Minute)
	return local, limitCfg
}
