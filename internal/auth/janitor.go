// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/stocksense/stocksense/pkg/errutil"
)

// DefaultJanitorInterval is how often expired state is swept.
const DefaultJanitorInterval = 10 * time.Minute

// SessionPurger deletes sessions whose expiry is at or before now.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CounterPurger deletes rate-limit counters whose window started before cutoff.
type CounterPurger interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor periodically removes expired sessions and stale rate-limit
// counters. Correctness never depends on it; it only bounds table growth.
type Janitor struct {
	sessions  SessionPurger
	counters  CounterPurger
	maxWindow time.Duration
	interval  time.Duration
	logger    *slog.Logger
	clock     Clock

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a Janitor. Either purger may be nil. Counters are kept
// until the longest window in limits has passed since their window started.
func NewJanitor(sessions SessionPurger, counters CounterPurger, limits map[Action]Limit, interval time.Duration, logger *slog.Logger, clock Clock) *Janitor {
	var maxWindow time.Duration
	for _, l := range limits {
		maxWindow = max(maxWindow, l.Window)
	}
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Janitor{
		sessions:  sessions,
		counters:  counters,
		maxWindow: maxWindow,
		interval:  interval,
		logger:    logger,
		clock:     clock,
	}
}

// Sweep runs a single cleanup pass. Both purges are attempted even if the
// first fails; errors are combined.
func (j *Janitor) Sweep(ctx context.Context) error {
	now := j.clock()
	var errs []error

	if j.sessions != nil {
		n, err := j.sessions.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, oops.Code("JANITOR_SESSIONS_FAILED").Wrap(err))
		} else if n > 0 {
			j.logger.Info("purged expired sessions", "count", n)
		}
	}

	if j.counters != nil {
		n, err := j.counters.DeleteStale(ctx, now.Add(-j.maxWindow))
		if err != nil {
			errs = append(errs, oops.Code("JANITOR_COUNTERS_FAILED").Wrap(err))
		} else if n > 0 {
			j.logger.Info("purged stale rate limit counters", "count", n)
		}
	}

	return errors.Join(errs...)
}

// Start begins periodic sweeping until ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.run(ctx)
}

// Stop stops the janitor and waits for the current sweep to finish.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			errutil.LogError(j.logger, "janitor sweep failed", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
