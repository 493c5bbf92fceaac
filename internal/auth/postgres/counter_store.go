// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/stocksense/stocksense/internal/auth"
)

// hitSQL applies one fixed-window transition in a single statement. The
// conflict branch only updates when the window has ended or the count is
// below the limit, so a denied hit returns no row and leaves the counter
// untouched.
const hitSQL = `
	INSERT INTO rate_limit_counters (identifier, action_kind, attempt_count, window_start)
	VALUES ($1, $2, 1, $3)
	ON CONFLICT (identifier, action_kind) DO UPDATE SET
		attempt_count = CASE WHEN rate_limit_counters.window_start <= $4 THEN 1
		                     ELSE rate_limit_counters.attempt_count + 1 END,
		window_start  = CASE WHEN rate_limit_counters.window_start <= $4 THEN $3
		                     ELSE rate_limit_counters.window_start END
	WHERE rate_limit_counters.window_start <= $4
	   OR rate_limit_counters.attempt_count < $5
	RETURNING attempt_count, window_start
`

// CounterStore implements auth.CounterStore using PostgreSQL.
type CounterStore struct {
	pool poolIface
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(pool poolIface) *CounterStore {
	return &CounterStore{pool: pool}
}

// Hit records an attempt at now. Row locking on the conflict target makes
// concurrent hits for the same key serialize.
func (s *CounterStore) Hit(ctx context.Context, identifier string, action auth.Action, limit auth.Limit, now time.Time) (auth.Counter, bool, error) {
	counter := auth.Counter{Identifier: identifier, Action: action}

	err := s.pool.QueryRow(ctx, hitSQL,
		identifier, string(action), now, now.Add(-limit.Window), limit.MaxAttempts,
	).Scan(&counter.Attempts, &counter.WindowStart)
	if err == nil {
		return counter, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return auth.Counter{}, false, oops.Code("RATELIMIT_HIT_FAILED").
			With("operation", "upsert counter").
			With("action", string(action)).
			Wrap(err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT attempt_count, window_start
		FROM rate_limit_counters
		WHERE identifier = $1 AND action_kind = $2
	`, identifier, string(action)).Scan(&counter.Attempts, &counter.WindowStart)
	if err != nil {
		return auth.Counter{}, false, oops.Code("RATELIMIT_HIT_FAILED").
			With("operation", "read denied counter").
			With("action", string(action)).
			Wrap(err)
	}
	return counter, false, nil
}

// DeleteStale removes counters whose window started before cutoff.
func (s *CounterStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limit_counters WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("RATELIMIT_PURGE_FAILED").
			With("operation", "delete stale counters").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ auth.CounterStore  = (*CounterStore)(nil)
	_ auth.CounterPurger = (*CounterStore)(nil)
)
