// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/internal/httpapi"
	"github.com/stocksense/stocksense/internal/logging"
	"github.com/stocksense/stocksense/internal/observability"
)

const (
	serviceName     = "stocksense"
	shutdownTimeout = 10 * time.Second
)

// serveHooks lets tests observe a running server.
type serveHooks struct {
	logOutput io.Writer
	onReady   func(httpAddr, metricsAddr string)
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP server exposing signup, signin, validate and signout on
POST /auth, plus metrics and health probes on the metrics address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags(), nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, serveHooks{})
		},
	}
	addServeFlags(cmd.Flags())
	return cmd
}

// runServe wires the service and blocks until ctx is cancelled or a
// listener fails.
func runServe(ctx context.Context, cfg *Config, hooks serveHooks) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, hooks.logOutput)
	if err != nil {
		return err
	}

	logger.Info("starting stocksense",
		"listen_addr", cfg.HTTP.ListenAddr,
		"store", cfg.Store,
		"rate_limit_backend", cfg.RateLimit.Backend,
	)
	if cfg.Secrets.LegacyHashSecret == "" {
		logger.Warn("LEGACY_HASH_SECRET is not set; legacy SHA-256 password hashes cannot be verified")
	}

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	obs := observability.NewServer(cfg.MetricsAddr, be.ready, logger)

	limits := cfg.Limits()
	limiter, err := auth.NewRateLimiter(be.counters, limits, nil)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(be.accounts, be.sessions, auth.NewHasher(cfg.Secrets.LegacyHashSecret), limiter,
		auth.WithLogger(logger),
		auth.WithMetrics(auth.NewMetrics(obs.Registry())),
	)
	if err != nil {
		return err
	}

	var obsErrCh <-chan error
	if cfg.MetricsAddr != "" {
		obsErrCh, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				logger.Warn("failed to stop observability server", "error", err)
			}
		}()
	}

	if janitor := newJanitor(cfg, be, limits, logger); janitor != nil {
		janitor.Start(ctx)
		defer janitor.Stop()
	}

	listener, err := net.Listen("tcp", cfg.HTTP.ListenAddr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.ListenAddr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler: httpapi.NewRouter(svc, httpapi.Options{
			AllowedOrigins: cfg.HTTP.CORSOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			Logger:         logger,
			Metrics:        obs.Metrics(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()

	logger.Info("auth server started", "addr", listener.Addr().String())
	if hooks.onReady != nil {
		hooks.onReady(listener.Addr().String(), obs.Addr())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err := <-obsErrCh:
		runErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}

	logger.Info("auth server stopped")
	return runErr
}

// newJanitor returns nil when janitor_interval is zero. Expired rows are
// already filtered at read time, so sweeping only reclaims space.
func newJanitor(cfg *Config, be *backends, limits map[auth.Action]auth.Limit, logger *slog.Logger) *auth.Janitor {
	if cfg.JanitorInterval == 0 {
		return nil
	}
	return auth.NewJanitor(be.sessionPurger, be.counterPurger, limits, cfg.JanitorInterval,
		logger.With("component", "janitor"), nil)
}
