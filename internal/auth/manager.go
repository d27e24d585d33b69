// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionConfig configures the SessionManager. The secure-cookie flag is an
// explicit configuration value, not ambient process state.
type SessionConfig struct {
	// CookieName is the session cookie name. Defaults to DefaultCookieName.
	CookieName string

	// SecureCookies marks issued cookies Secure. True in production.
	SecureCookies bool

	// Lifetime is the server-side session lifetime. Defaults to
	// DefaultSessionLifetime. A verification that finds less than half of
	// it remaining extends the expiry and reissues the cookie.
	Lifetime time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.Lifetime <= 0 {
		c.Lifetime = DefaultSessionLifetime
	}
	return c
}

// SessionManager creates, verifies, and destroys sessions. It is the sole
// writer of session state; cookie writes are returned as instructions and
// applied by the caller's transport.
type SessionManager struct {
	sessions SessionRepository
	cfg      SessionConfig
	logger   *slog.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(sessions SessionRepository, cfg SessionConfig) (*SessionManager, error) {
	return NewSessionManagerWithLogger(sessions, cfg, slog.Default())
}

// NewSessionManagerWithLogger creates a SessionManager with an explicit logger.
func NewSessionManagerWithLogger(sessions SessionRepository, cfg SessionConfig, logger *slog.Logger) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("sessions repository is required")
	}
	if logger == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("logger is required")
	}
	return &SessionManager{
		sessions: sessions,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// CookieName returns the configured session cookie name.
func (m *SessionManager) CookieName() string {
	return m.cfg.CookieName
}

// Create mints a new session for the user and persists it. The returned
// cookie carries the plaintext token; the stored row only its hash.
// A store failure here is fatal to the operation and propagated.
func (m *SessionManager) Create(ctx context.Context, userID ulid.ULID) (*Session, SessionCookie, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, SessionCookie{}, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(userID, tokenHash, time.Now().Add(m.cfg.Lifetime))
	if err != nil {
		return nil, SessionCookie{}, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "build session").
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, SessionCookie{}, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, newSessionCookie(m.cfg.CookieName, token, m.cfg.SecureCookies), nil
}

// Verify looks up the session for a presented token and returns it together
// with an optional cookie instruction:
//
//   - empty token: (nil, nil, nil) - not authenticated, nothing to write
//   - unknown or expired token: (nil, cleared cookie, nil) - the client
//     should drop its stale token
//   - fresh session (less than half the lifetime remaining): the expiry is
//     extended and the cookie reissued with the same token
//   - otherwise: (session, nil, nil)
//
// "Not authenticated" is a normal outcome, not an error; only store faults
// are returned as errors. The caller applies any cookie instruction
// best-effort: a transport failure must not change the verification result.
func (m *SessionManager) Verify(ctx context.Context, token string) (*Session, *SessionCookie, error) {
	if token == "" {
		return nil, nil, nil
	}

	cleared := ClearedSessionCookie(m.cfg.CookieName, m.cfg.SecureCookies)

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &cleared, nil
		}
		return nil, nil, oops.Code("SESSION_VERIFY_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := time.Now()
	if session.IsExpiredAt(now) {
		// Lazy cleanup; the sweep would get it eventually.
		if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warn("failed to delete expired session", "error", err)
		}
		return nil, &cleared, nil
	}

	if remaining := session.ExpiresAt.Sub(now); remaining < m.cfg.Lifetime/2 {
		newExpiry := now.Add(m.cfg.Lifetime)
		if err := m.sessions.UpdateExpiry(ctx, session.ID, newExpiry); err != nil {
			// The session is still valid on its old expiry; skip the renewal.
			m.logger.Warn("failed to extend session expiry", "error", err)
			return session, nil, nil
		}
		session.ExpiresAt = newExpiry
		refreshed := newSessionCookie(m.cfg.CookieName, token, m.cfg.SecureCookies)
		return session, &refreshed, nil
	}

	return session, nil, nil
}

// Destroy deletes the session for the presented token, if any, and returns
// the cleared cookie to hand to the client. Destroying an absent or unknown
// token is a no-op; only unexpected store faults are returned, and even then
// the cleared cookie is still valid to write.
func (m *SessionManager) Destroy(ctx context.Context, token string) (SessionCookie, error) {
	cleared := ClearedSessionCookie(m.cfg.CookieName, m.cfg.SecureCookies)
	if token == "" {
		return cleared, nil
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return cleared, nil
		}
		return cleared, oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if err := m.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return cleared, oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}

	return cleared, nil
}

// DestroyAll deletes every session belonging to the user and returns the
// cleared cookie to hand to the caller's own client. Even on a store fault
// the cleared cookie is still valid to write.
func (m *SessionManager) DestroyAll(ctx context.Context, userID ulid.ULID) (SessionCookie, error) {
	cleared := ClearedSessionCookie(m.cfg.CookieName, m.cfg.SecureCookies)
	if err := m.sessions.DeleteByUser(ctx, userID); err != nil {
		return cleared, oops.Code("SESSION_DESTROY_ALL_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return cleared, nil
}

// SweepExpired removes expired session rows and returns the count removed.
// Run periodically; the verify path tolerates rows disappearing underneath it.
func (m *SessionManager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
