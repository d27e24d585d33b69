// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Server serves the authentication API.
type Server struct {
	addr       string
	svc        *auth.Service
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a new API server. metrics may be nil when the
// observability listener is disabled.
func NewServer(addr string, svc *auth.Service, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("auth service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		svc:     svc,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Handler returns the route handler, wrapped with OpenTelemetry HTTP
// instrumentation so request spans reach the logs.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth", s.handleAuth)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("DELETE /api/auth/me", s.handleDeleteAccount)
	return otelhttp.NewHandler(mux, "gatehouse.api")
}

// Start begins serving the API. It returns an error channel that receives any
// serve error; the channel is closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// credentialsRequest is the JSON body for signup, login, and auth.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Mode     string `json:"mode,omitempty"`
}

// userResponse is the JSON body returned by /api/auth/me.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	result := s.svc.Signup(r.Context(), newCookieSink(w, r), req.Email, req.Password)
	s.recordSignup(signupOutcome(result))
	s.writeResult(w, result)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	result := s.svc.Login(r.Context(), newCookieSink(w, r), req.Email, req.Password)
	s.recordLogin(loginOutcome(result))
	s.writeResult(w, result)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	result := s.svc.Auth(r.Context(), newCookieSink(w, r), req.Mode, req.Email, req.Password)
	if req.Mode == auth.ModeLogin {
		s.recordLogin(loginOutcome(result))
	} else {
		s.recordSignup(signupOutcome(result))
	}
	s.writeResult(w, result)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	result := s.svc.Logout(r.Context(), newCookieSink(w, r))
	s.writeResult(w, result)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.svc.VerifyAuth(r.Context(), newCookieSink(w, r))
	if err != nil {
		errutil.LogError(s.logger, "me: session verification failed", err)
		s.recordVerification("error")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": auth.MsgGenericFailure,
		})
		return
	}
	if user == nil {
		s.recordVerification("invalid")
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": auth.MsgAuthFailed,
		})
		return
	}

	s.recordVerification("valid")
	s.writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	result := s.svc.DeleteAccount(r.Context(), newCookieSink(w, r))
	s.writeResult(w, result)
}

// decodeCredentials parses the request body. A malformed body is the client's
// fault and gets a 400 with the generic validation message.
func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, auth.Result{
			Message: auth.MsgValidationFailed,
			Errors:  auth.FieldErrors{auth.FieldGeneral: auth.MsgValidationFailed},
		})
		return credentialsRequest{}, false
	}
	return req, true
}

func (s *Server) writeResult(w http.ResponseWriter, result auth.Result) {
	s.writeJSON(w, statusForResult(result), result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

// statusForResult maps a flow result onto an HTTP status.
func statusForResult(result auth.Result) int {
	switch {
	case result.Success:
		return http.StatusOK
	case result.Errors[auth.FieldGeneral] != "":
		return http.StatusInternalServerError
	case result.Message == auth.MsgValidationFailed:
		return http.StatusUnprocessableEntity
	case result.Errors[auth.FieldEmail] == auth.MsgEmailTaken:
		return http.StatusConflict
	default:
		return http.StatusUnauthorized
	}
}

func signupOutcome(result auth.Result) string {
	switch {
	case result.Success:
		return "success"
	case result.Message == auth.MsgValidationFailed:
		return "validation_failed"
	case result.Errors[auth.FieldEmail] == auth.MsgEmailTaken:
		return "conflict"
	default:
		return "error"
	}
}

func loginOutcome(result auth.Result) string {
	switch {
	case result.Success:
		return "success"
	case result.Errors[auth.FieldPassword] != "":
		return "rejected"
	default:
		return "error"
	}
}

func (s *Server) recordSignup(outcome string) {
	if s.metrics != nil {
		s.metrics.SignupsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) recordVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	}
}
