// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"context"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Tenant ID validation constraints.
const (
	MinTenantIDLength = 3
	MaxTenantIDLength = 50
)

// Password validation constraints.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

// MaxDisplayNameLength bounds the optional display name.
const MaxDisplayNameLength = 100

var tenantIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Account is a company login. TenantID is the company ID chosen at signup.
type Account struct {
	ID           ulid.ULID
	TenantID     string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the account projection returned to callers. It never carries
// the password hash.
type Profile struct {
	ID          ulid.ULID
	TenantID    string
	DisplayName string
}

// NewAccount creates a validated Account.
func NewAccount(tenantID, passwordHash, displayName string, now time.Time) (*Account, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Account{
		ID:           ulid.Make(),
		TenantID:     tenantID,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Profile returns the public projection of the account.
func (a *Account) Profile() Profile {
	return Profile{
		ID:          a.ID,
		TenantID:    a.TenantID,
		DisplayName: a.DisplayName,
	}
}

// ValidateTenantID checks length and character set of a company ID.
func ValidateTenantID(tenantID string) error {
	if len(tenantID) < MinTenantIDLength || len(tenantID) > MaxTenantIDLength {
		return ErrInvalidInput("company_id", "Company ID must be between 3 and 50 characters")
	}
	if !tenantIDRegex.MatchString(tenantID) {
		return ErrInvalidInput("company_id", "Company ID may only contain letters, numbers, hyphens, and underscores")
	}
	return nil
}

// ValidatePassword checks password length in characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrInvalidInput("password", "Password must be at least 6 characters")
	}
	if n > MaxPasswordLength {
		return ErrInvalidInput("password", "Password must be at most 128 characters")
	}
	return nil
}

// ValidateDisplayName checks the optional display name.
func ValidateDisplayName(name string) error {
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return ErrInvalidInput("full_name", "Full name must be at most 100 characters")
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns an error wrapping ErrDuplicate when
	// the tenant ID is already taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByTenantID retrieves an account by its exact tenant ID.
	GetByTenantID(ctx context.Context, tenantID string) (*Account, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error
}
