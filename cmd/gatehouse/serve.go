// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/web"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// sweepInterval is how often expired sessions are purged.
const sweepInterval = time.Hour

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the HTTP authentication server, apply pending database
migrations, and begin sweeping expired sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	// Flag names double as config keys; defaults mirror config.Default() so
	// unset flags don't mask file values with zero values.
	defaults := config.Default()
	cmd.Flags().String("http.addr", defaults.HTTP.Addr, "HTTP listen address")
	cmd.Flags().String("observability.addr", defaults.Observability.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("session.cookie_name", defaults.Session.CookieName, "session cookie name")
	cmd.Flags().Bool("session.secure_cookies", defaults.Session.SecureCookies, "mark session cookies Secure")
	cmd.Flags().Duration("session.lifetime", defaults.Session.Lifetime, "session lifetime")
	cmd.Flags().String("redirect.after_login", defaults.Redirect.AfterLogin, "redirect target after login")
	cmd.Flags().String("redirect.after_logout", defaults.Redirect.AfterLogout, "redirect target after logout")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("gatehouse", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	logger.Info("starting server",
		"http_addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	// Apply pending migrations before serving.
	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	migrateErr := migrator.Up()
	if closeErr := migrator.Close(); closeErr != nil {
		logger.Warn("error closing migrator", "error", closeErr)
	}
	if migrateErr != nil {
		return migrateErr
	}
	logger.Info("database schema up to date")

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database")

	sessionMgr, err := auth.NewSessionManagerWithLogger(
		authpg.NewSessionRepository(pool),
		auth.SessionConfig{
			CookieName:    cfg.Session.CookieName,
			SecureCookies: cfg.Session.SecureCookies,
			Lifetime:      cfg.Session.Lifetime,
		},
		logger,
	)
	if err != nil {
		return err
	}

	svc, err := auth.NewServiceWithLogger(
		authpg.NewUserRepository(pool),
		auth.NewArgon2idHasher(),
		sessionMgr,
		auth.RedirectConfig{
			AfterLogin:  cfg.Redirect.AfterLogin,
			AfterLogout: cfg.Redirect.AfterLogout,
		},
		logger,
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Observability.Addr != "" {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool {
			return pool.Ping(ctx) == nil
		})
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return err
		}
		metrics = obsServer.Metrics()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	apiServer, err := web.NewServer(cfg.HTTP.Addr, svc, metrics, logger)
	if err != nil {
		return err
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	go sweepExpiredSessions(ctx, sessionMgr, metrics, logger)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Gatehouse server started")
	logger.Info("server ready", "http_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// sweepExpiredSessions purges expired sessions on a fixed interval until the
// context is cancelled.
func sweepExpiredSessions(ctx context.Context, mgr *auth.SessionManager, metrics *observability.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := mgr.SweepExpired(ctx)
			if err != nil {
				errutil.LogError(logger, "session sweep failed", err)
				continue
			}
			if count > 0 {
				logger.Info("swept expired sessions", "count", count)
				if metrics != nil {
					metrics.SessionsSwept.Add(float64(count))
				}
			}
		}
	}
}

// monitorServerErrors cancels the run context when a server reports a fatal
// error. A closed channel means a graceful stop.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
