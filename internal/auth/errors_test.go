// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/pkg/errutil"
)

func TestErrors_KindAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    auth.Kind
		message string
	}{
		{"validation", auth.ErrInvalidInput("company_id", "Company ID and password are required"), auth.KindValidation, "Company ID and password are required"},
		{"duplicate", auth.ErrTenantTaken("acme"), auth.KindDuplicateTenant, "This Company ID is already registered"},
		{"credentials", auth.ErrBadCredentials(), auth.KindInvalidCredentials, "Invalid Company ID or password"},
		{"session", auth.ErrBadSession(), auth.KindInvalidSession, "Invalid or expired session"},
		{"rate limited", auth.ErrTooManyAttempts(auth.ActionSignin, time.Minute), auth.KindRateLimited, "Too many attempts. Please try again later."},
		{"plain error", errors.New("boom"), auth.KindInternal, "Internal server error"},
		{"wrapped internal", auth.ErrNotFound, auth.KindInternal, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, auth.KindOf(tt.err))
			assert.Equal(t, tt.message, auth.PublicMessage(tt.err))
		})
	}

	retry, ok := auth.RetryAfter(auth.ErrTooManyAttempts(auth.ActionSignup, 90*time.Second))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, retry)

	_, ok = auth.RetryAfter(auth.ErrBadSession())
	assert.False(t, ok)

	errutil.AssertErrorContext(t, auth.ErrTenantTaken("acme"), "company_id", "acme")
	assert.Equal(t, "rate_limited", auth.KindRateLimited.String())
}
