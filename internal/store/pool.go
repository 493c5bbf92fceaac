// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
)

// ConnectOption configures Connect.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	attempts uint64
	backoff  time.Duration
	maxConns int32
}

// WithConnectRetry sets how many pings are attempted and the initial backoff.
func WithConnectRetry(attempts uint64, backoff time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// WithMaxConns caps the pool size. Zero keeps the pgxpool default.
func WithMaxConns(n int32) ConnectOption {
	return func(c *connectConfig) { c.maxConns = n }
}

// Connect creates a pool for databaseURL and waits until the server answers
// a ping, retrying with exponential backoff.
func Connect(ctx context.Context, databaseURL string, opts ...ConnectOption) (*pgxpool.Pool, error) {
	cfg := connectConfig{attempts: DefaultConnectAttempts, backoff: DefaultConnectBackoff}
	for _, opt := range opts {
		opt(&cfg)
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if cfg.maxConns > 0 {
		poolCfg.MaxConns = cfg.maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	var retries uint64
	if cfg.attempts > 1 {
		retries = cfg.attempts - 1
	}
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(cfg.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", cfg.attempts).
			Wrap(err)
	}
	return pool, nil
}
