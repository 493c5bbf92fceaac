// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/stocksense/stocksense/internal/auth"
	"github.com/stocksense/stocksense/internal/auth/postgres"
)

var _ = Describe("Auth repositories", func() {
	var (
		ctx      context.Context
		accounts *postgres.AccountRepository
		sessions *postgres.SessionRepository
		counters *postgres.CounterStore
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		accounts = postgres.NewAccountRepository(testPool)
		sessions = postgres.NewSessionRepository(testPool)
		counters = postgres.NewCounterStore(testPool)
		now = time.Now().UTC().Truncate(time.Microsecond)

		_, err := testPool.Exec(ctx, `TRUNCATE accounts, sessions, rate_limit_counters`)
		Expect(err).NotTo(HaveOccurred())
	})

	newAccount := func(tenantID string) *auth.Account {
		account, err := auth.NewAccount(tenantID, "$argon2id$hash", "", now)
		Expect(err).NotTo(HaveOccurred())
		return account
	}

	Describe("AccountRepository", func() {
		It("round-trips an account", func() {
			account := newAccount("acme-1")
			Expect(accounts.Create(ctx, account)).To(Succeed())

			got, err := accounts.GetByTenantID(ctx, "acme-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(account.ID))
			Expect(got.CreatedAt).To(BeTemporally("==", now))
		})

		It("matches tenant IDs exactly", func() {
			Expect(accounts.Create(ctx, newAccount("acme-1"))).To(Succeed())

			_, err := accounts.GetByTenantID(ctx, "ACME-1")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("lets exactly one concurrent signup win", func() {
			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				created    int
				duplicates int
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					err := accounts.Create(ctx, newAccount("race-tenant"))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						created++
					case errors.Is(err, auth.ErrDuplicate):
						duplicates++
					}
				}()
			}
			wg.Wait()
			Expect(created).To(Equal(1))
			Expect(duplicates).To(Equal(7))
		})

		It("updates the password hash", func() {
			account := newAccount("acme-1")
			Expect(accounts.Create(ctx, account)).To(Succeed())
			Expect(accounts.UpdatePasswordHash(ctx, account.ID, "$argon2id$new")).To(Succeed())

			got, err := accounts.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("$argon2id$new"))
		})
	})

	Describe("SessionRepository", func() {
		var account *auth.Account

		BeforeEach(func() {
			account = newAccount("acme-1")
			Expect(accounts.Create(ctx, account)).To(Succeed())
		})

		It("returns only unexpired sessions", func() {
			session, err := auth.NewSession(account.ID, auth.HashSessionToken("tok"), now)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions.Create(ctx, session)).To(Succeed())

			got, err := sessions.GetActiveByTokenHash(ctx, session.TokenHash, now.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(got.AccountID).To(Equal(account.ID))

			_, err = sessions.GetActiveByTokenHash(ctx, session.TokenHash, session.ExpiresAt)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("deletes idempotently and purges expired rows", func() {
			live, err := auth.NewSession(account.ID, "live", now)
			Expect(err).NotTo(HaveOccurred())
			expired, err := auth.NewSession(account.ID, "expired", now.Add(-auth.SessionLifetime))
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions.Create(ctx, live)).To(Succeed())
			Expect(sessions.Create(ctx, expired)).To(Succeed())

			n, err := sessions.DeleteExpired(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			Expect(sessions.DeleteByTokenHash(ctx, "live")).To(Succeed())
			Expect(sessions.DeleteByTokenHash(ctx, "live")).To(Succeed())
			_, err = sessions.GetActiveByTokenHash(ctx, "live", now)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("cascades when the account is removed", func() {
			session, err := auth.NewSession(account.ID, "cascade", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions.Create(ctx, session)).To(Succeed())

			_, err = testPool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, account.ID.String())
			Expect(err).NotTo(HaveOccurred())

			_, err = sessions.GetActiveByTokenHash(ctx, "cascade", now)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("rejects sessions for unknown accounts", func() {
			session, err := auth.NewSession(ulid.Make(), "orphan", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions.Create(ctx, session)).NotTo(Succeed())
		})
	})

	Describe("CounterStore", func() {
		limit := auth.Limit{MaxAttempts: 3, Window: time.Minute}

		It("applies the fixed window", func() {
			for i := 1; i <= 3; i++ {
				c, ok, err := counters.Hit(ctx, "acme", auth.ActionSignin, limit, now)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(c.Attempts).To(Equal(i))
			}

			c, ok, err := counters.Hit(ctx, "acme", auth.ActionSignin, limit, now.Add(30*time.Second))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(c.Attempts).To(Equal(3))
			Expect(c.WindowStart).To(BeTemporally("==", now))

			c, ok, err = counters.Hit(ctx, "acme", auth.ActionSignin, limit, now.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(c.Attempts).To(Equal(1))
		})

		It("never admits more than the limit under concurrency", func() {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				allowed int
			)
			for range 12 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, ok, err := counters.Hit(ctx, "burst", auth.ActionSignup, limit, now)
					Expect(err).NotTo(HaveOccurred())
					if ok {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			Expect(allowed).To(Equal(3))
		})

		It("purges stale counters", func() {
			_, _, err := counters.Hit(ctx, "acme", auth.ActionSignin, limit, now.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())

			n, err := counters.DeleteStale(ctx, now.Add(-time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})
	})
})
