// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/internal/observability"
	"github.com/stocksense/stocksense/pkg/errutil"
)

// Authenticator is the auth behavior the handler dispatches to.
type Authenticator interface {
	Signup(ctx context.Context, req auth.SignupRequest) (*auth.Grant, error)
	Signin(ctx context.Context, req auth.SigninRequest) (*auth.Grant, error)
	Validate(ctx context.Context, token string) (*auth.Profile, error)
	Signout(ctx context.Context, token string) error
}

var _ Authenticator = (*auth.Service)(nil)

// Handler serves the action-dispatched auth endpoint.
type Handler struct {
	svc     Authenticator
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHandler creates a Handler. logger and metrics may be nil.
func NewHandler(svc Authenticator, logger *slog.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger, metrics: metrics}
}

// ServeHTTP decodes the request, dispatches it and writes the JSON response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	action := "unknown"

	req, err := DecodeRequest(w, r)
	var body any
	if err == nil {
		action = req.Action()
		body, err = h.dispatch(r.Context(), req)
	}

	status := http.StatusOK
	if err != nil {
		status = writeError(w, err)
		if status == http.StatusInternalServerError {
			errutil.LogErrorContext(r.Context(), h.logger, "auth request failed", err,
				"action", action, "request_id", middleware.GetReqID(r.Context()))
		}
	} else {
		writeJSON(w, status, body)
	}

	if h.metrics != nil {
		h.metrics.RequestsTotal.WithLabelValues(action, strconv.Itoa(status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) dispatch(ctx context.Context, req Request) (any, error) {
	switch req := req.(type) {
	case SignupRequest:
		grant, err := h.svc.Signup(ctx, auth.SignupRequest{
			TenantID:    req.CompanyID,
			Password:    req.Password,
			DisplayName: req.FullName,
		})
		if err != nil {
			return nil, err
		}
		return grantResponse{User: newUserResponse(grant.Profile), Token: grant.Token}, nil

	case SigninRequest:
		grant, err := h.svc.Signin(ctx, auth.SigninRequest{
			TenantID: req.CompanyID,
			Password: req.Password,
		})
		if err != nil {
			return nil, err
		}
		return grantResponse{User: newUserResponse(grant.Profile), Token: grant.Token}, nil

	case ValidateRequest:
		if req.Token == "" {
			return nil, oops.Code(CodeTokenRequired).Errorf("token required")
		}
		profile, err := h.svc.Validate(ctx, req.Token)
		if err != nil {
			return nil, err
		}
		return validateResponse{User: newUserResponse(*profile)}, nil

	case SignoutRequest:
		if err := h.svc.Signout(ctx, req.Token); err != nil {
			return nil, err
		}
		return signoutResponse{Success: true}, nil

	default:
		return nil, oops.Code(CodeInvalidAction).Errorf("unhandled request type %T", req)
	}
}
