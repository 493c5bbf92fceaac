// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

//go:build integration

package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/stocksense/stocksense/internal/auth"
	authredis "github.com/stocksense/stocksense/internal/auth/redis"
)

func TestCounterStore(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := authredis.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := authredis.NewCounterStore(client, "test")
	limit := auth.Limit{MaxAttempts: 3, Window: time.Minute}
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("fixed window", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			c, ok, err := store.Hit(ctx, "acme", auth.ActionSignin, limit, now)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, i, c.Attempts)
		}

		c, ok, err := store.Hit(ctx, "acme", auth.ActionSignin, limit, now.Add(30*time.Second))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 3, c.Attempts)
		assert.Equal(t, now, c.WindowStart)

		c, ok, err = store.Hit(ctx, "acme", auth.ActionSignin, limit, now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, c.Attempts)
	})

	t.Run("keys are independent per action", func(t *testing.T) {
		c, ok, err := store.Hit(ctx, "acme", auth.ActionSignup, limit, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, c.Attempts)
	})

	t.Run("concurrent hits never exceed the limit", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := store.Hit(ctx, "burst", auth.ActionSignin, limit, now)
				if err == nil && ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 3, allowed)
	})
}
