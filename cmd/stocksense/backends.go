// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/internal/auth/memory"
	"github.com/stocksense/stocksense/internal/auth/postgres"
	authredis "github.com/stocksense/stocksense/internal/auth/redis"
	"github.com/stocksense/stocksense/internal/observability"
	"github.com/stocksense/stocksense/internal/store"
)

// backends holds the stores selected by configuration.
type backends struct {
	accounts auth.AccountRepository
	sessions auth.SessionRepository
	counters auth.CounterStore

	sessionPurger auth.SessionPurger
	counterPurger auth.CounterPurger

	checks  []observability.ReadinessChecker
	closers []func()
}

// ready reports whether every backing service answers.
func (b *backends) ready(ctx context.Context) error {
	var errs []error
	for _, check := range b.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the stores named by cfg. On error everything opened
// so far is closed.
func openBackends(ctx context.Context, cfg *Config, logger *slog.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if cfg.Store == backendMemory {
		logger.Warn("using in-memory store; accounts and sessions are lost on exit")
		sessions := memory.NewSessionRepository()
		b.accounts = memory.NewAccountRepository()
		b.sessions = sessions
		b.sessionPurger = sessions
	} else {
		if cfg.Database.AutoMigrate {
			if err := migrateUp(cfg.Secrets.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info("database migrations applied")
		}

		pool, err := store.Connect(ctx, cfg.Secrets.DatabaseURL, store.WithMaxConns(cfg.Database.MaxConns))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.checks = append(b.checks, func(ctx context.Context) error {
			return oops.Code("DB_NOT_READY").Wrap(pool.Ping(ctx))
		})
		logger.Info("connected to database")

		sessions := postgres.NewSessionRepository(pool)
		b.accounts = postgres.NewAccountRepository(pool)
		b.sessions = sessions
		b.sessionPurger = sessions

		if cfg.RateLimit.Backend == backendPostgres {
			counters := postgres.NewCounterStore(pool)
			b.counters = counters
			b.counterPurger = counters
		}
	}

	switch cfg.RateLimit.Backend {
	case backendMemory:
		counters := memory.NewCounterStore()
		b.counters = counters
		b.counterPurger = counters
	case backendRedis:
		client, err := authredis.Connect(ctx, cfg.Secrets.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.checks = append(b.checks, func(ctx context.Context) error {
			return oops.Code("REDIS_NOT_READY").Wrap(client.Ping(ctx).Err())
		})
		b.counters = authredis.NewCounterStore(client, authredis.DefaultKeyPrefix)
		logger.Info("connected to redis")
	}

	return b, nil
}

// migrateUp applies pending migrations.
func migrateUp(databaseURL string) (err error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}
