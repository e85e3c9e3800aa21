// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/timeline/cmd/timeline/config"
	"github.com/AleutianAI/timeline/pkg/logging"
	"github.com/AleutianAI/timeline/services/timeline"
	"github.com/AleutianAI/timeline/services/timeline/storage"
	"github.com/AleutianAI/timeline/services/timeline/storage/badger"
	"github.com/AleutianAI/timeline/services/timeline/telemetry"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the timeline HTTP API",
		Long: `Serve the timeline HTTP API under /v1/timeline and Prometheus metrics
under /metrics. Sessions are stored in BadgerDB and restored on start.

The config file is watched: log level and rate limits apply immediately,
other changes need a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, nil, false)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Slog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	db, err := badger.OpenDB(cfg.BadgerConfig(log.With("component", "badger")))
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := storage.NewBadgerRepository(db, log)
	if err != nil {
		return err
	}

	svc := timeline.NewService(cfg.ServiceConfig(), repo, log)
	defer svc.Close()

	restored, err := svc.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	log.Info("sessions restored",
		slog.Int("count", restored),
		slog.String("path", db.Path()),
		slog.Bool("in_memory", db.InMemory()))

	limiter := timeline.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	router, err := newRouter(cfg.Server, svc, limiter)
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("listening", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// Close watchers first so websocket handlers return.
		svc.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if _, err := os.Stat(opts.path()); err == nil {
		current := cfg
		g.Go(func() error {
			return config.Watch(gctx, opts.path(), func(next config.Config) {
				if opts.logLevel != "" {
					next.Logging.Level = opts.logLevel
				}
				applyReload(log, logger, limiter, current, next)
				current = next
			}, log)
		})
	}

	return g.Wait()
}

// newRouter builds the gin engine: tracing and HTTP metrics on every route,
// rate limiting on the API only.
func newRouter(server config.ServerConfig, svc *timeline.Service, limiter *timeline.RateLimiter) (*gin.Engine, error) {
	if server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	httpMetrics, err := telemetry.NewMetrics(otel.Meter("timeline.http"))
	if err != nil {
		return nil, fmt.Errorf("create http metrics: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if server.Debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("timeline"))
	router.Use(telemetry.GinMetrics(httpMetrics))

	if server.MetricsPort == 0 {
		router.GET("/metrics", gin.WrapH(metricsHandler()))
	}

	v1 := router.Group("/v1")
	v1.Use(limiter.Middleware())
	timeline.RegisterRoutes(v1, timeline.NewHandlers(svc))
	return router, nil
}

// metricsHandler serves the OTel prometheus exporter when it is active and
// the default registry otherwise. Both include the promauto collectors.
func metricsHandler() http.Handler {
	if h := telemetry.MetricsHandler(); h != nil {
		return h
	}
	return promhttp.Handler()
}

// applyReload applies the settings that can change at runtime.
func applyReload(log *slog.Logger, logger *logging.Logger, limiter *timeline.RateLimiter, current, next config.Config) {
	if level, err := next.LogLevel(); err == nil && level != logger.Level() {
		logger.SetLevel(level)
		log.Info("log level changed", slog.String("level", level.String()))
	}

	if next.Server.RateLimit != current.Server.RateLimit || next.Server.RateBurst != current.Server.RateBurst {
		limiter.SetLimit(next.Server.RateLimit, next.Server.RateBurst)
		log.Info("rate limit changed",
			slog.Float64("per_second", next.Server.RateLimit),
			slog.Int("burst", next.Server.RateBurst))
	}

	if next.Server.Port != current.Server.Port ||
		next.Server.MetricsPort != current.Server.MetricsPort ||
		next.Storage != current.Storage ||
		next.History != current.History ||
		next.Telemetry != current.Telemetry {
		log.Warn("some config changes take effect after restart")
	}
}
