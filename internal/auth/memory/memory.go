// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package memory provides in-process auth stores for development and tests.
// State is lost when the process exits.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stocksense/stocksense/internal/auth"
)

// AccountRepository implements auth.AccountRepository in memory.
type AccountRepository struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]auth.Account
	byTenantID map[string]ulid.ULID
}

// NewAccountRepository creates an empty AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:       make(map[ulid.ULID]auth.Account),
		byTenantID: make(map[string]ulid.ULID),
	}
}

// Create stores a new account.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byTenantID[account.TenantID]; exists {
		return oops.Code("ACCOUNT_DUPLICATE").
			With("company_id", account.TenantID).
			Wrap(auth.ErrDuplicate)
	}
	r.byID[account.ID] = *account
	r.byTenantID[account.TenantID] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return &account, nil
}

// GetByTenantID retrieves an account by tenant ID.
func (r *AccountRepository) GetByTenantID(_ context.Context, tenantID string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTenantID[tenantID]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("company_id", tenantID).
			Wrap(auth.ErrNotFound)
	}
	account := r.byID[id]
	return &account, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *AccountRepository) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = time.Now()
	r.byID[id] = account
	return nil
}

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	mu          sync.RWMutex
	byTokenHash map[string]auth.Session
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{byTokenHash: make(map[string]auth.Session)}
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byTokenHash[session.TokenHash]; exists {
		return oops.Code("SESSION_DUPLICATE").Wrap(auth.ErrDuplicate)
	}
	r.byTokenHash[session.TokenHash] = *session
	return nil
}

// GetActiveByTokenHash retrieves an unexpired session by token hash.
func (r *SessionRepository) GetActiveByTokenHash(_ context.Context, tokenHash string, now time.Time) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byTokenHash[tokenHash]
	if !ok || session.IsExpiredAt(now) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// DeleteByTokenHash removes a session if present.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byTokenHash, tokenHash)
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, session := range r.byTokenHash {
		if session.IsExpiredAt(now) {
			delete(r.byTokenHash, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTokenHash)
}

type counterKey struct {
	identifier string
	action     auth.Action
}

// CounterStore implements auth.CounterStore in memory.
type CounterStore struct {
	mu       sync.Mutex
	counters map[counterKey]auth.Counter
}

// NewCounterStore creates an empty CounterStore.
func NewCounterStore() *CounterStore {
	return &CounterStore{counters: make(map[counterKey]auth.Counter)}
}

// Hit applies the fixed-window transition under the store lock.
func (s *CounterStore) Hit(_ context.Context, identifier string, action auth.Action, limit auth.Limit, now time.Time) (auth.Counter, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{identifier: identifier, action: action}
	var current *auth.Counter
	if c, ok := s.counters[key]; ok {
		current = &c
	}
	next, allowed := auth.ApplyHit(current, identifier, action, limit, now)
	s.counters[key] = next
	return next, allowed, nil
}

// DeleteStale removes counters whose window started before cutoff.
func (s *CounterStore) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, c := range s.counters {
		if c.WindowStart.Before(cutoff) {
			delete(s.counters, key)
			n++
		}
	}
	return n, nil
}

// Compile-time interface checks.
var (
	_ auth.SessionPurger     = (*SessionRepository)(nil)
	_ auth.CounterPurger     = (*CounterStore)(nil)
	_ auth.AccountRepository = (*AccountRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
	_ auth.CounterStore      = (*CounterStore)(nil)
)
