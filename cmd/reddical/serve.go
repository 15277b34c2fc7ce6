// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/reddical/reddical/internal/auth"
	authpg "github.com/reddical/reddical/internal/auth/postgres"
	"github.com/reddical/reddical/internal/config"
	"github.com/reddical/reddical/internal/httpapi"
	"github.com/reddical/reddical/internal/logging"
	"github.com/reddical/reddical/internal/mail"
	"github.com/reddical/reddical/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the JSON API server, connect to PostgreSQL, and serve
registration, login, and password-reset endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// logNotifier stands in for SMTP when no host is configured: reset links go
// to the log instead of an inbox. Useful for local development.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) SendResetEmail(_ context.Context, to, resetLink, username string) error {
	n.logger.Info("reset email suppressed (no SMTP host configured)",
		"to", to,
		"username", username,
		"reset_link", resetLink,
	)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("reddical", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	logger.Info("starting server",
		"http_addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create connection pool").Wrap(err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "ping database").Wrap(err)
	}
	logger.Info("connected to database")

	users := authpg.NewUserRepository(pool)
	tokens := authpg.NewTokenStore(pool)
	sessions := authpg.NewSessionRepository(pool)

	var notifier auth.Notifier
	if cfg.SMTP.Host != "" {
		mailer, err := mail.NewMailer(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return err
		}
		notifier = mailer
	} else {
		notifier = &logNotifier{logger: logger}
	}

	svc, err := auth.NewService(users, tokens, auth.NewArgon2idHasher(), notifier, auth.Options{
		ResetTokenTTL: cfg.Reset.TokenTTL,
		ResetBaseURL:  cfg.Reset.BaseURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	apiServer := httpapi.NewServer(httpapi.Config{
		Addr:          cfg.HTTP.Addr,
		CookieName:    cfg.HTTP.CookieName,
		CookieDomain:  cfg.HTTP.CookieDomain,
		SecureCookies: cfg.HTTP.SecureCookies,
	}, svc, sessions, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiErrCh, err := apiServer.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			return pool.Ping(context.Background()) == nil
		})
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if stopErr := apiServer.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	// Reclaim expired sessions in the background. The janitor exits on
	// context cancel, so cancel before waiting for it.
	stopJanitor := startSessionJanitor(ctx, sessions, logger)
	defer func() {
		cancel()
		stopJanitor()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Server started")
	logger.Info("server ready", "http_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
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

// startSessionJanitor periodically deletes expired session records. The
// returned stop function blocks until the goroutine exits.
func startSessionJanitor(ctx context.Context, sessions auth.SessionRepository, logger *slog.Logger) (stop func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sessions.DeleteExpired(ctx)
				if err != nil {
					logger.Warn("expired session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("expired sessions reclaimed", "count", n)
				}
			}
		}
	}()
	return func() { <-done }
}

// monitorServerErrors cancels the context when a server reports an error, so
// one failing listener takes the whole process through graceful shutdown.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
