// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Action identifies a rate-limited operation.
type Action string

// Rate-limited actions.
const (
	ActionSignup Action = "signup"
	ActionSignin Action = "signin"
)

// AnonymousIdentifier is the shared bucket for requests without a tenant ID.
const AnonymousIdentifier = "anonymous"

// Limit configures a fixed window for one action.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultLimits returns the default per-action limits.
func DefaultLimits() map[Action]Limit {
	return map[Action]Limit{
		ActionSignin: {MaxAttempts: 10, Window: 15 * time.Minute},
		ActionSignup: {MaxAttempts: 5, Window: 60 * time.Minute},
	}
}

// Counter is the persisted state of one (identifier, action) window.
type Counter struct {
	Identifier  string
	Action      Action
	Attempts    int
	WindowStart time.Time
}

// CounterStore persists rate-limit counters. Implementations must apply the
// fixed-window transition atomically per key.
type CounterStore interface {
	// Hit records an attempt at now and reports whether it was admitted.
	// When denied, the returned counter is the live window, left unchanged.
	Hit(ctx context.Context, identifier string, action Action, limit Limit, now time.Time) (Counter, bool, error)
}

// ApplyHit computes the fixed-window transition for an attempt at now.
// current is nil when no counter exists yet. Stores that hold counters
// in process use this under their own lock.
func ApplyHit(current *Counter, identifier string, action Action, limit Limit, now time.Time) (Counter, bool) {
	if current == nil || !now.Before(current.WindowStart.Add(limit.Window)) {
		return Counter{
			Identifier:  identifier,
			Action:      action,
			Attempts:    1,
			WindowStart: now,
		}, true
	}
	if current.Attempts >= limit.MaxAttempts {
		return *current, false
	}
	next := *current
	next.Attempts++
	return next, true
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Attempts   int
	Limit      int
	RetryAfter time.Duration
}

// RateLimiter enforces fixed-window limits per (identifier, action).
type RateLimiter struct {
	store  CounterStore
	limits map[Action]Limit
	clock  Clock
}

// NewRateLimiter creates a RateLimiter. A nil clock uses time.Now.
func NewRateLimiter(store CounterStore, limits map[Action]Limit, clock Clock) (*RateLimiter, error) {
	if store == nil {
		return nil, oops.Errorf("counter store is required")
	}
	for action, limit := range limits {
		if limit.MaxAttempts < 1 || limit.Window <= 0 {
			return nil, oops.Code("RATELIMIT_INVALID_CONFIG").
				With("action", string(action)).
				Errorf("limit for %s must allow at least one attempt over a positive window", action)
		}
	}
	if clock == nil {
		clock = time.Now
	}
	copied := make(map[Action]Limit, len(limits))
	for k, v := range limits {
		copied[k] = v
	}
	return &RateLimiter{store: store, limits: copied, clock: clock}, nil
}

// Allow records an attempt for identifier and reports whether it may proceed.
// An empty identifier uses the AnonymousIdentifier bucket. Actions without a
// configured limit are always allowed. Store errors are returned, never
// treated as allowed.
func (rl *RateLimiter) Allow(ctx context.Context, identifier string, action Action) (Decision, error) {
	limit, ok := rl.limits[action]
	if !ok {
		return Decision{Allowed: true}, nil
	}
	if identifier == "" {
		identifier = AnonymousIdentifier
	}

	now := rl.clock()
	counter, allowed, err := rl.store.Hit(ctx, identifier, action, limit, now)
	if err != nil {
		return Decision{}, oops.Code("RATELIMIT_STORE_FAILED").
			With("operation", "hit counter").
			With("action", string(action)).
			Wrap(err)
	}

	decision := Decision{
		Allowed:  allowed,
		Attempts: counter.Attempts,
		Limit:    limit.MaxAttempts,
	}
	if !allowed {
		decision.RetryAfter = counter.WindowStart.Add(limit.Window).Sub(now)
		if decision.RetryAfter < 0 {
			decision.RetryAfter = 0
		}
	}
	return decision, nil
}
