// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package auth provides company account authentication for StockSense.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewAccount - creates an Account with a validated tenant ID and display name
//   - NewSession - creates a Session expiring SessionLifetime after issuance
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service coordinates signup, signin, session validation, and signout over
// AccountRepository, SessionRepository, a PasswordHasher, and a RateLimiter.
// Every operation is a single request against the stores; no state is held
// in process between calls.
//
// # Errors
//
// Client-visible failures carry one of the Code* constants. Use KindOf to
// classify an error and PublicMessage to render it; every other error is
// internal and must not be shown to callers.
package auth
