// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/store"
)

func TestAuthRepositories(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Repositories Integration Suite")
}

var (
	pool      *pgxpool.Pool
	container *tcpostgres.PostgresContainer
	users     *authpg.UserRepository
	sessions  *authpg.SessionRepository
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("gatehouse_test"),
		tcpostgres.WithUsername("gatehouse"),
		tcpostgres.WithPassword("gatehouse"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	_ = migrator.Close()

	pool, err = pgxpool.New(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())

	users = authpg.NewUserRepository(pool)
	sessions = authpg.NewSessionRepository(pool)
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

func cleanupAuthTables(ctx context.Context) {
	_, _ = pool.Exec(ctx, "DELETE FROM sessions")
	_, _ = pool.Exec(ctx, "DELETE FROM users")
}

func mustCreateUser(ctx context.Context, email string) *auth.User {
	user, err := auth.NewUser(email, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
	Expect(err).NotTo(HaveOccurred())
	Expect(users.Create(ctx, user)).To(Succeed())
	return user
}

func mustCreateSession(ctx context.Context, userID ulid.ULID, lifetime time.Duration) *auth.Session {
	_, hash, err := auth.GenerateSessionToken()
	Expect(err).NotTo(HaveOccurred())
	session, err := auth.NewSession(userID, hash, time.Now().Add(lifetime))
	Expect(err).NotTo(HaveOccurred())
	Expect(sessions.Create(ctx, session)).To(Succeed())
	return session
}

var _ = Describe("UserRepository", func() {
	BeforeEach(func() {
		cleanupAuthTables(context.Background())
	})

	Describe("Create", func() {
		It("inserts a user", func() {
			ctx := context.Background()
			user := mustCreateUser(ctx, "alice@example.com")

			got, err := users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Email).To(Equal("alice@example.com"))
		})

		It("rejects an exact duplicate email", func() {
			ctx := context.Background()
			mustCreateUser(ctx, "alice@example.com")

			dup, err := auth.NewUser("alice@example.com", "$argon2id$other")
			Expect(err).NotTo(HaveOccurred())
			err = users.Create(ctx, dup)
			Expect(err).To(MatchError(auth.ErrDuplicateEmail))
		})

		It("treats a case variant as a distinct account", func() {
			ctx := context.Background()
			first := mustCreateUser(ctx, "alice@example.com")
			second := mustCreateUser(ctx, "ALICE@example.com")

			got, err := users.GetByEmail(ctx, "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(first.ID))

			got, err = users.GetByEmail(ctx, "ALICE@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(second.ID))
		})
	})

	Describe("GetByEmail", func() {
		It("matches the exact stored email", func() {
			ctx := context.Background()
			mustCreateUser(ctx, "Alice@Example.com")

			got, err := users.GetByEmail(ctx, "Alice@Example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Email).To(Equal("Alice@Example.com"))
		})

		It("does not match a case variant", func() {
			ctx := context.Background()
			mustCreateUser(ctx, "Alice@Example.com")

			_, err := users.GetByEmail(ctx, "alice@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("reports not found for unknown email", func() {
			_, err := users.GetByEmail(context.Background(), "nobody@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("cascades to the user's sessions", func() {
			ctx := context.Background()
			user := mustCreateUser(ctx, "alice@example.com")
			session := mustCreateSession(ctx, user.ID, time.Hour)

			Expect(users.Delete(ctx, user.ID)).To(Succeed())

			_, err := sessions.GetByTokenHash(ctx, session.TokenHash)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("reports not found for unknown user", func() {
			err := users.Delete(context.Background(), ulid.Make())
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})

var _ = Describe("SessionRepository", func() {
	BeforeEach(func() {
		cleanupAuthTables(context.Background())
	})

	Describe("GetByTokenHash", func() {
		It("round-trips a session", func() {
			ctx := context.Background()
			user := mustCreateUser(ctx, "alice@example.com")
			session := mustCreateSession(ctx, user.ID, time.Hour)

			got, err := sessions.GetByTokenHash(ctx, session.TokenHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(session.ID))
			Expect(got.UserID).To(Equal(user.ID))
			Expect(got.ExpiresAt).To(BeTemporally("~", session.ExpiresAt, time.Millisecond))
		})

		It("reports not found for an unknown hash", func() {
			_, err := sessions.GetByTokenHash(context.Background(), "no-such-hash")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("UpdateExpiry", func() {
		It("moves the expiry forward", func() {
			ctx := context.Background()
			user := mustCreateUser(ctx, "alice@example.com")
			session := mustCreateSession(ctx, user.ID, time.Hour)

			newExpiry := time.Now().Add(48 * time.Hour)
			Expect(sessions.UpdateExpiry(ctx, session.ID, newExpiry)).To(Succeed())

			got, err := sessions.GetByTokenHash(ctx, session.TokenHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ExpiresAt).To(BeTemporally("~", newExpiry, time.Millisecond))
		})
	})

	Describe("DeleteByUser", func() {
		It("removes only the user's sessions", func() {
			ctx := context.Background()
			alice := mustCreateUser(ctx, "alice@example.com")
			bob := mustCreateUser(ctx, "bob@example.com")
			mustCreateSession(ctx, alice.ID, time.Hour)
			mustCreateSession(ctx, alice.ID, time.Hour)
			bobSession := mustCreateSession(ctx, bob.ID, time.Hour)

			Expect(sessions.DeleteByUser(ctx, alice.ID)).To(Succeed())

			got, err := sessions.GetByTokenHash(ctx, bobSession.TokenHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal(bob.ID))
		})
	})

	Describe("DeleteExpired", func() {
		It("removes only sessions past their expiry", func() {
			ctx := context.Background()
			user := mustCreateUser(ctx, "alice@example.com")
			expired := mustCreateSession(ctx, user.ID, -time.Minute)
			live := mustCreateSession(ctx, user.ID, time.Hour)

			count, err := sessions.DeleteExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			_, err = sessions.GetByTokenHash(ctx, expired.TokenHash)
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = sessions.GetByTokenHash(ctx, live.TokenHash)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
