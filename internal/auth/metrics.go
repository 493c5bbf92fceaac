// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for request metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "rate_limited"
	OutcomeError   = "error"
)

// Metrics records authentication outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	hashMigrations prometheus.Counter
}

// NewMetrics creates auth metrics and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksense_auth_requests_total",
				Help: "Total number of auth requests by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksense_auth_rate_limited_total",
				Help: "Total number of auth attempts rejected by the rate limiter",
			},
			[]string{"action"},
		),
		hashMigrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stocksense_auth_hash_migrations_total",
				Help: "Total number of legacy password hashes upgraded to argon2id",
			},
		),
	}

	reg.MustRegister(m.requests, m.rateLimited, m.hashMigrations)
	return m
}

func (m *Metrics) recordRequest(action string, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(action, outcomeOf(err)).Inc()
}

func (m *Metrics) recordRateLimited(action Action) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) recordHashMigration() {
	if m == nil {
		return
	}
	m.hashMigrations.Inc()
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch KindOf(err) {
	case KindInternal:
		return OutcomeError
	case KindRateLimited:
		return OutcomeDenied
	default:
		return OutcomeFailure
	}
}

// RequestCounter returns the request counter for action and outcome.
func (m *Metrics) RequestCounter(action, outcome string) prometheus.Counter {
	return m.requests.WithLabelValues(action, outcome)
}

// RateLimitedCounter returns the rejection counter for action.
func (m *Metrics) RateLimitedCounter(action Action) prometheus.Counter {
	return m.rateLimited.WithLabelValues(string(action))
}

// HashMigrationsCounter returns the legacy hash upgrade counter.
func (m *Metrics) HashMigrationsCounter() prometheus.Counter {
	return m.hashMigrations
}
