// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package httpapi exposes the auth service as a JSON endpoint that
// dispatches on the request's "action" field.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stocksense/stocksense/internal/observability"
)

// DefaultRequestTimeout bounds a single request.
const DefaultRequestTimeout = 10 * time.Second

// Options configures NewRouter.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *observability.Metrics
}

// NewRouter builds the HTTP handler for the auth endpoint. POST /auth and
// POST / are equivalent.
func NewRouter(svc Authenticator, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(middleware.Timeout(timeout))

	h := NewHandler(svc, logger, opts.Metrics)
	r.Method(http.MethodPost, "/", h)
	r.Method(http.MethodPost, "/auth", h)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})
	return r
}
