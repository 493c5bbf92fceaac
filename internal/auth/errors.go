// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate")

// Error codes for client-visible failures.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeDuplicateTenant    = "AUTH_DUPLICATE_TENANT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidSession     = "AUTH_INVALID_SESSION"
	CodeRateLimited        = "AUTH_RATE_LIMITED"
)

// Kind classifies an error returned by Service for transport mapping.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateTenant
	KindInvalidCredentials
	KindInvalidSession
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateTenant:
		return "duplicate_tenant"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidSession:
		return "invalid_session"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// ErrInvalidInput creates a validation error for a request field.
// The message is safe to show to the caller.
func ErrInvalidInput(field, message string) error {
	return oops.Code(CodeValidation).
		With("field", field).
		With("message", message).
		Errorf("%s", message)
}

// ErrTenantTaken creates the error for a signup on an existing tenant ID.
func ErrTenantTaken(tenantID string) error {
	return oops.Code(CodeDuplicateTenant).
		With("company_id", tenantID).
		Errorf("company ID already registered")
}

// ErrBadCredentials creates the error for a failed signin. The same error is
// produced for unknown accounts and wrong passwords.
func ErrBadCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid company ID or password")
}

// ErrBadSession creates the error for a missing, unknown, or expired session token.
func ErrBadSession() error {
	return oops.Code(CodeInvalidSession).Errorf("invalid or expired session")
}

// ErrTooManyAttempts creates the error for a rate-limited request.
func ErrTooManyAttempts(action Action, retryAfter time.Duration) error {
	return oops.Code(CodeRateLimited).
		With("action", string(action)).
		With("retry_after", retryAfter).
		Errorf("too many %s attempts", action)
}

// KindOf classifies err. Anything not produced by one of the client-visible
// constructors above is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	switch oopsErr.Code() {
	case CodeValidation:
		return KindValidation
	case CodeDuplicateTenant:
		return KindDuplicateTenant
	case CodeInvalidCredentials:
		return KindInvalidCredentials
	case CodeInvalidSession:
		return KindInvalidSession
	case CodeRateLimited:
		return KindRateLimited
	default:
		return KindInternal
	}
}

// PublicMessage extracts a caller-facing message from an error. Internal
// errors never leak their cause.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		oopsErr, _ := oops.AsOops(err)
		if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
			return msg
		}
		return "Invalid request"
	case KindDuplicateTenant:
		return "This Company ID is already registered"
	case KindInvalidCredentials:
		return "Invalid Company ID or password"
	case KindInvalidSession:
		return "Invalid or expired session"
	case KindRateLimited:
		return "Too many attempts. Please try again later."
	default:
		return "Internal server error"
	}
}

// RetryAfter returns the retry hint carried by a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	if KindOf(err) != KindRateLimited {
		return 0, false
	}
	oopsErr, _ := oops.AsOops(err)
	d, ok := oopsErr.Context()["retry_after"].(time.Duration)
	return d, ok
}
