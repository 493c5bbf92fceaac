// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Clock returns the current time.
type Clock func() time.Time

// dummyPasswordHash is verified when an account doesn't exist, or its stored
// hash uses a cheap legacy scheme, so every signin pays one argon2id. It
// never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SignupRequest carries signup input.
type SignupRequest struct {
	TenantID    string
	Password    string
	DisplayName string
}

// SigninRequest carries signin input.
type SigninRequest struct {
	TenantID string
	Password string
}

// Grant is the result of a successful signup or signin.
type Grant struct {
	Profile   Profile
	Token     string
	ExpiresAt time.Time
}

// Service provides signup, signin, session validation, and signout.
type Service struct {
	accounts AccountRepository
	sessions SessionRepository
	hasher   PasswordHasher
	limiter  *RateLimiter
	logger   *slog.Logger
	metrics  *Metrics
	clock    Clock
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService creates a Service. All four dependencies are required.
func NewService(accounts AccountRepository, sessions SessionRepository, hasher PasswordHasher, limiter *RateLimiter, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if limiter == nil {
		return nil, oops.Errorf("rate limiter is required")
	}

	s := &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		limiter:  limiter,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup creates an account and issues its first session.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (grant *Grant, err error) {
	defer func() { s.metrics.recordRequest(string(ActionSignup), err) }()

	if err := ValidateTenantID(req.TenantID); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if err := ValidateDisplayName(req.DisplayName); err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, req.TenantID, ActionSignup); err != nil {
		return nil, err
	}

	// The unique index is the authority; this only avoids hashing for
	// the common duplicate case.
	_, lookupErr := s.accounts.GetByTenantID(ctx, req.TenantID)
	switch {
	case lookupErr == nil:
		return nil, ErrTenantTaken(req.TenantID)
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get account by tenant id").
			Wrap(lookupErr)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(req.TenantID, hash, req.DisplayName, s.clock())
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrTenantTaken(req.TenantID)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID.String(),
		"company_id", account.TenantID,
	)

	return s.issueSession(ctx, account)
}

// Signin authenticates a tenant and issues a new session.
// Unknown tenants and wrong passwords produce the same error after the
// same amount of hashing work.
func (s *Service) Signin(ctx context.Context, req SigninRequest) (grant *Grant, err error) {
	defer func() { s.metrics.recordRequest(string(ActionSignin), err) }()

	if err := s.checkRateLimit(ctx, req.TenantID, ActionSignin); err != nil {
		return nil, err
	}

	if req.TenantID == "" || req.Password == "" {
		return nil, ErrInvalidInput("company_id", "Company ID and password are required")
	}

	account, lookupErr := s.accounts.GetByTenantID(ctx, req.TenantID)
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_SIGNIN_FAILED").
				With("operation", "get account by tenant id").
				Wrap(lookupErr)
		}
		s.hasher.Verify(req.Password, dummyPasswordHash)
		s.logger.InfoContext(ctx, "signin failed", "company_id", req.TenantID)
		return nil, ErrBadCredentials()
	}

	legacy := s.hasher.NeedsUpgrade(account.PasswordHash)
	verified := s.hasher.Verify(req.Password, account.PasswordHash)
	if legacy {
		// Legacy schemes are far cheaper than argon2id; match the unknown-tenant cost.
		s.hasher.Verify(req.Password, dummyPasswordHash)
	}
	if !verified {
		s.logger.InfoContext(ctx, "signin failed", "company_id", req.TenantID)
		return nil, ErrBadCredentials()
	}

	if legacy {
		if err := s.upgradeHash(ctx, account, req.Password); err != nil {
			return nil, err
		}
	}

	return s.issueSession(ctx, account)
}

// Validate returns the profile owning token if the session is active.
func (s *Service) Validate(ctx context.Context, token string) (profile *Profile, err error) {
	defer func() { s.metrics.recordRequest("validate", err) }()

	if token == "" {
		return nil, ErrBadSession()
	}

	session, err := s.sessions.GetActiveByTokenHash(ctx, HashSessionToken(token), s.clock())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadSession()
		}
		return nil, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadSession()
		}
		return nil, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "get account by id").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}

	p := account.Profile()
	return &p, nil
}

// Signout revokes the session for token. Unknown tokens are not an error.
func (s *Service) Signout(ctx context.Context, token string) (err error) {
	defer func() { s.metrics.recordRequest("signout", err) }()

	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_SIGNOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

func (s *Service) checkRateLimit(ctx context.Context, identifier string, action Action) error {
	decision, err := s.limiter.Allow(ctx, identifier, action)
	if err != nil {
		return oops.Code("AUTH_RATE_LIMIT_FAILED").
			With("operation", "check rate limit").
			With("action", string(action)).
			Wrap(err)
	}
	if !decision.Allowed {
		s.metrics.recordRateLimited(action)
		s.logger.WarnContext(ctx, "rate limit exceeded",
			"action", string(action),
			"company_id", identifier,
			"attempts", decision.Attempts,
			"retry_after", decision.RetryAfter,
		)
		return ErrTooManyAttempts(action, decision.RetryAfter)
	}
	return nil
}

// upgradeHash replaces a legacy hash with argon2id before a session is issued.
func (s *Service) upgradeHash(ctx context.Context, account *Account, password string) error {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "rehash legacy password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
		return oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "update password hash").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	account.PasswordHash = newHash
	s.metrics.recordHashMigration()
	s.logger.InfoContext(ctx, "password hash upgraded", "account_id", account.ID.String())
	return nil
}

func (s *Service) issueSession(ctx context.Context, account *Account) (*Grant, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(account.ID, tokenHash, s.clock())
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	return &Grant{
		Profile:   account.Profile(),
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
