// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/stocksense/stocksense/internal/auth"
)

// CodeTokenRequired marks a validate request without a token.
const CodeTokenRequired = "HTTP_TOKEN_REQUIRED"

type userResponse struct {
	ID        string  `json:"id"`
	CompanyID string  `json:"company_id"`
	FullName  *string `json:"full_name"`
}

type grantResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type validateResponse struct {
	User userResponse `json:"user"`
}

type signoutResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func newUserResponse(p auth.Profile) userResponse {
	u := userResponse{ID: p.ID.String(), CompanyID: p.TenantID}
	if p.DisplayName != "" {
		name := p.DisplayName
		u.FullName = &name
	}
	return u
}

// errorStatus maps err to an HTTP status and a caller-safe message.
func errorStatus(err error) (int, string) {
	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case CodeMalformedBody:
			return http.StatusBadRequest, "Invalid request body"
		case CodeBodyTooLarge:
			return http.StatusRequestEntityTooLarge, "Request body too large"
		case CodeInvalidAction:
			return http.StatusBadRequest, "Invalid action"
		case CodeTokenRequired:
			return http.StatusUnauthorized, "Token required"
		}
	}

	msg := auth.PublicMessage(err)
	switch auth.KindOf(err) {
	case auth.KindValidation, auth.KindDuplicateTenant:
		return http.StatusBadRequest, msg
	case auth.KindInvalidCredentials, auth.KindInvalidSession:
		return http.StatusUnauthorized, msg
	case auth.KindRateLimited:
		return http.StatusTooManyRequests, msg
	default:
		return http.StatusInternalServerError, msg
	}
}

// retryAfterSeconds rounds d up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}

// writeError writes the error body for err and returns its status.
func writeError(w http.ResponseWriter, err error) int {
	status, msg := errorStatus(err)
	body := errorResponse{Error: msg}
	if status == http.StatusTooManyRequests {
		if d, ok := auth.RetryAfter(err); ok {
			body.RetryAfter = retryAfterSeconds(d)
			w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
		}
	}
	writeJSON(w, status, body)
	return status
}
