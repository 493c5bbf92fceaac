// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/internal/auth/memory"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAccountRepository()

	account, err := auth.NewAccount("acme-1", "$argon2id$hash", "Acme", now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, account))

	t.Run("get by tenant and id", func(t *testing.T) {
		got, err := repo.GetByTenantID(ctx, "acme-1")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)

		got, err = repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "acme-1", got.TenantID)
	})

	t.Run("tenant lookup is exact", func(t *testing.T) {
		_, err := repo.GetByTenantID(ctx, "ACME-1")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("duplicate tenant", func(t *testing.T) {
		dup, err := auth.NewAccount("acme-1", "$argon2id$other", "", now)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), auth.ErrDuplicate)
	})

	t.Run("returned accounts are copies", func(t *testing.T) {
		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		got.PasswordHash = "tampered"

		again, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$hash", again.PasswordHash)
	})

	t.Run("update password hash", func(t *testing.T) {
		require.NoError(t, repo.UpdatePasswordHash(ctx, account.ID, "$argon2id$new"))
		got, err := repo.GetByTenantID(ctx, "acme-1")
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$new", got.PasswordHash)

		assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, ulid.Make(), "x"), auth.ErrNotFound)
	})

	t.Run("concurrent creates admit one winner", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a, err := auth.NewAccount("race-tenant", "$argon2id$hash", "", now)
				if err != nil {
					return
				}
				if repo.Create(ctx, a) == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
	})
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSessionRepository()

	session, err := auth.NewSession(ulid.Make(), auth.HashSessionToken("tok"), now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetActiveByTokenHash(ctx, session.TokenHash, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	_, err = repo.GetActiveByTokenHash(ctx, session.TokenHash, session.ExpiresAt)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	_, err = repo.GetActiveByTokenHash(ctx, "unknown", now)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.DeleteByTokenHash(ctx, session.TokenHash))
	require.NoError(t, repo.DeleteByTokenHash(ctx, session.TokenHash))
	assert.Equal(t, 0, repo.Len())
}

func TestCounterStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCounterStore()
	limit := auth.Limit{MaxAttempts: 2, Window: time.Minute}

	c, ok, err := store.Hit(ctx, "acme", auth.ActionSignin, limit, now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Attempts)

	_, ok, err = store.Hit(ctx, "acme", auth.ActionSignin, limit, now)
	require.NoError(t, err)
	assert.True(t, ok)

	c, ok, err = store.Hit(ctx, "acme", auth.ActionSignin, limit, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Attempts)
	assert.Equal(t, now, c.WindowStart)

	c, ok, err = store.Hit(ctx, "acme", auth.ActionSignup, limit, now)
	require.NoError(t, err)
	assert.True(t, ok, "actions are counted separately")
	assert.Equal(t, 1, c.Attempts)
}
