// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package mocks provides testify mocks for the auth repository and hasher interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/stocksense/stocksense/internal/auth"
)

// MockAccountRepository is a mock auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock whose expectations are asserted on cleanup.
func NewMockAccountRepository(t mock.TestingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	registerCleanup(t, func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountRepository) GetByTenantID(ctx context.Context, tenantID string) (*auth.Account, error) {
	args := m.Called(ctx, tenantID)
	account, _ := args.Get(0).(*auth.Account)
	return account, args.Error(1)
}

func (m *MockAccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// MockSessionRepository is a mock auth.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a mock whose expectations are asserted on cleanup.
func NewMockSessionRepository(t mock.TestingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Test(t)
	registerCleanup(t, func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.Session, error) {
	args := m.Called(ctx, tokenHash, now)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

// MockCounterStore is a mock auth.CounterStore.
type MockCounterStore struct {
	mock.Mock
}

// NewMockCounterStore creates a mock whose expectations are asserted on cleanup.
func NewMockCounterStore(t mock.TestingT) *MockCounterStore {
	m := &MockCounterStore{}
	m.Test(t)
	registerCleanup(t, func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCounterStore) Hit(ctx context.Context, identifier string, action auth.Action, limit auth.Limit, now time.Time) (auth.Counter, bool, error) {
	args := m.Called(ctx, identifier, action, limit, now)
	counter, _ := args.Get(0).(auth.Counter)
	return counter, args.Bool(1), args.Error(2)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock whose expectations are asserted on cleanup.
func NewMockPasswordHasher(t mock.TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	registerCleanup(t, func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) bool {
	args := m.Called(password, hash)
	return args.Bool(0)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

func registerCleanup(t mock.TestingT, fn func()) {
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(fn)
	}
}

var (
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.SessionRepository = (*MockSessionRepository)(nil)
	_ auth.CounterStore      = (*MockCounterStore)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
)
