// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Authentication modes accepted by Auth.
const ModeLogin = "login"

// User-facing messages. Store and transport faults all collapse to
// MsgGenericFailure; internal detail stays in the operator log.
const (
	MsgValidationFailed    = "Validation failed"
	MsgRegistrationFailed  = "Registration failed"
	MsgAuthFailed          = "Authentication failed"
	MsgAccountDeleteFailed = "Account deletion failed"
	MsgEmailTaken          = "It seems like an account for the chosen email already exists."
	MsgBadCredentials      = "Could not authenticate you, please check your credentials."
	MsgGenericFailure      = "Something went wrong. Please try again later."
)

// dummyPasswordHash is verified against when a login targets an unknown
// email, so the response time matches the known-email path. This is NOT a
// real credential - it is a fake hash that will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing-attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RedirectConfig names the destinations handed back on successful flows.
type RedirectConfig struct {
	AfterLogin  string
	AfterLogout string
}

func (c RedirectConfig) withDefaults() RedirectConfig {
	if c.AfterLogin == "" {
		c.AfterLogin = "/"
	}
	if c.AfterLogout == "" {
		c.AfterLogout = "/"
	}
	return c
}

// Result is the outcome of a signup, login, or logout flow. Expected
// business failures are carried in Errors/Message; Result never transports
// internal error detail.
type Result struct {
	Success    bool        `json:"success"`
	RedirectTo string      `json:"redirectTo,omitempty"`
	Message    string      `json:"message,omitempty"`
	Errors     FieldErrors `json:"errors,omitempty"`
}

// Service composes credential validation, the user store, the password
// hasher, and the SessionManager into the authentication flows. It holds no
// per-request state; the request-scoped CookieSink is passed per call.
type Service struct {
	users     UserRepository
	hasher    PasswordHasher
	sessions  *SessionManager
	redirects RedirectConfig
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserRepository, hasher PasswordHasher, sessions *SessionManager, redirects RedirectConfig) (*Service, error) {
	return NewServiceWithLogger(users, hasher, sessions, redirects, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, sessions *SessionManager, redirects RedirectConfig, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		redirects: redirects.withDefaults(),
		logger:    logger,
	}, nil
}

// CookieName returns the session cookie name, for transports that read the
// incoming token themselves.
func (s *Service) CookieName() string {
	return s.sessions.CookieName()
}

// Signup registers a new account and logs it in. The failure path before the
// store call is side-effect free; a uniqueness conflict comes back on the
// email field, everything else as the generic failure. A user row left
// behind by a failed session create is accepted - login retries it.
func (s *Service) Signup(ctx context.Context, cookies CookieSink, email, password string) Result {
	creds, fieldErrs := ValidateCredentials(email, password)
	if fieldErrs != nil {
		return Result{Errors: fieldErrs, Message: MsgValidationFailed}
	}

	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		errutil.LogError(s.logger, "signup: password hashing failed", err)
		return s.registrationFailure()
	}

	user, err := NewUser(creds.Email, hash)
	if err != nil {
		errutil.LogError(s.logger, "signup: building user failed", err)
		return s.registrationFailure()
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return Result{
				Errors:  FieldErrors{FieldEmail: MsgEmailTaken},
				Message: MsgRegistrationFailed,
			}
		}
		errutil.LogError(s.logger, "signup: user create failed", err)
		return s.registrationFailure()
	}

	if err := s.startSession(ctx, cookies, user.ID); err != nil {
		errutil.LogError(s.logger, "signup: session create failed", err)
		return s.registrationFailure()
	}

	return Result{Success: true, RedirectTo: s.redirects.AfterLogin}
}

// Login authenticates existing credentials. Unknown email and wrong password
// produce the identical result so account existence never leaks; the dummy
// verification keeps the two paths on the same clock.
func (s *Service) Login(ctx context.Context, cookies CookieSink, email, password string) Result {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = s.hasher.Verify(password, dummyPasswordHash)
			return s.authFailure()
		}
		errutil.LogError(s.logger, "login: user lookup failed", err)
		return s.genericFailure(MsgAuthFailed)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return s.authFailure()
	}

	if err := s.startSession(ctx, cookies, user.ID); err != nil {
		errutil.LogError(s.logger, "login: session create failed", err)
		return s.genericFailure(MsgAuthFailed)
	}

	return Result{Success: true, RedirectTo: s.redirects.AfterLogin}
}

// Auth dispatches on mode: ModeLogin routes to Login, anything else to
// Signup. No other branching.
func (s *Service) Auth(ctx context.Context, cookies CookieSink, mode, email, password string) Result {
	if mode == ModeLogin {
		return s.Login(ctx, cookies, email, password)
	}
	return s.Signup(ctx, cookies, email, password)
}

// Logout destroys the current session, if any, and clears the cookie.
// It is idempotent and never fails the caller; faults are logged only.
func (s *Service) Logout(ctx context.Context, cookies CookieSink) Result {
	token, _ := cookies.Get(s.sessions.CookieName())

	cleared, err := s.sessions.Destroy(ctx, token)
	if err != nil {
		errutil.LogError(s.logger, "logout: session destroy failed", err)
	}
	if err := cookies.Set(cleared); err != nil {
		errutil.LogError(s.logger, "logout: clearing cookie failed", err)
	}

	return Result{Success: true, RedirectTo: s.redirects.AfterLogout}
}

// VerifyAuth resolves the current session from the incoming cookie.
// (nil, nil, nil) means "not authenticated" - a normal outcome. Any cookie
// refresh or clear decided by the manager is applied best-effort: a sink
// failure never changes the answer. Only store faults surface as errors.
func (s *Service) VerifyAuth(ctx context.Context, cookies CookieSink) (*User, *Session, error) {
	token, ok := cookies.Get(s.sessions.CookieName())
	if !ok || token == "" {
		return nil, nil, nil
	}

	session, instruction, err := s.sessions.Verify(ctx, token)
	if instruction != nil {
		if setErr := cookies.Set(*instruction); setErr != nil {
			s.logger.Debug("session cookie write failed", "error", setErr)
		}
	}
	if err != nil {
		return nil, nil, oops.Code("AUTH_VERIFY_FAILED").Wrap(err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The user was removed out from under the session; drop it.
			if _, destroyErr := s.sessions.Destroy(ctx, token); destroyErr != nil {
				errutil.LogError(s.logger, "verify: orphan session destroy failed", destroyErr)
			}
			cleared := ClearedSessionCookie(s.sessions.CookieName(), s.sessions.cfg.SecureCookies)
			if setErr := cookies.Set(cleared); setErr != nil {
				s.logger.Debug("session cookie write failed", "error", setErr)
			}
			return nil, nil, nil
		}
		return nil, nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	return user, session, nil
}

// DeleteAccount removes the authenticated user's account and revokes every
// session it owns. An unauthenticated caller gets MsgAuthFailed and nothing
// is deleted. Once the user row is gone the flow succeeds; session revocation
// and the cookie clear are best-effort on top of the store's cascade.
func (s *Service) DeleteAccount(ctx context.Context, cookies CookieSink) Result {
	user, _, err := s.VerifyAuth(ctx, cookies)
	if err != nil {
		errutil.LogError(s.logger, "delete account: session verification failed", err)
		return s.genericFailure(MsgAccountDeleteFailed)
	}
	if user == nil {
		return Result{Message: MsgAuthFailed}
	}

	if err := s.users.Delete(ctx, user.ID); err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogError(s.logger, "delete account: user delete failed", err)
		return s.genericFailure(MsgAccountDeleteFailed)
	}

	cleared, err := s.sessions.DestroyAll(ctx, user.ID)
	if err != nil {
		errutil.LogError(s.logger, "delete account: session revocation failed", err)
	}
	if err := cookies.Set(cleared); err != nil {
		errutil.LogError(s.logger, "delete account: clearing cookie failed", err)
	}

	return Result{Success: true, RedirectTo: s.redirects.AfterLogout}
}

// authFailure is the uniform credential-mismatch result. The message is
// always attached to the password field, never the email field, so the two
// failure causes stay indistinguishable.
func (s *Service) authFailure() Result {
	return Result{
		Errors:  FieldErrors{FieldPassword: MsgBadCredentials},
		Message: MsgAuthFailed,
	}
}

func (s *Service) registrationFailure() Result {
	return s.genericFailure(MsgRegistrationFailed)
}

func (s *Service) genericFailure(message string) Result {
	return Result{
		Errors:  FieldErrors{FieldGeneral: MsgGenericFailure},
		Message: message,
	}
}

// startSession mints a session and hands the cookie to the sink. A sink
// failure during explicit creation is an infrastructure fault: the caller
// cannot have received the token, so the flow fails generically.
func (s *Service) startSession(ctx context.Context, cookies CookieSink, userID ulid.ULID) error {
	_, cookie, err := s.sessions.Create(ctx, userID)
	if err != nil {
		return err
	}
	if err := cookies.Set(cookie); err != nil {
		return oops.Code("AUTH_COOKIE_WRITE_FAILED").Wrap(err)
	}
	return nil
}
