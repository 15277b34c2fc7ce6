// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

// Package httpapi exposes the authentication service over a JSON HTTP API.
// Identity travels in an HttpOnly session cookie holding an opaque token;
// only the token's SHA-256 hash is persisted server-side.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/reddical/reddical/internal/auth"
)

// DefaultCookieName is the session cookie name used when none is configured.
const DefaultCookieName = "qid"

// Config holds HTTP API settings.
type Config struct {
	// Addr is the listen address in "host:port" format.
	Addr string

	// CookieName is the session cookie name. Defaults to DefaultCookieName.
	CookieName string

	// CookieDomain scopes the session cookie. Empty means host-only.
	CookieDomain string

	// SecureCookies marks session cookies Secure. Enable behind TLS.
	SecureCookies bool

	// SessionTTL is the server-side session lifetime. Defaults to
	// auth.SessionTTL.
	SessionTTL time.Duration
}

// Server serves the authentication API.
type Server struct {
	cfg      Config
	svc      *auth.Service
	sessions auth.SessionRepository
	logger   *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server. logger may be nil, in which case
// slog.Default is used.
func NewServer(cfg Config, svc *auth.Service, sessions auth.SessionRepository, logger *slog.Logger) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = auth.SessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, svc: svc, sessions: sessions, logger: logger}
}

// Handler returns the API route table. Exposed separately from Start so
// tests can drive it through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("POST /api/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /api/reset-password", s.handleResetPassword)
	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("GET /api/users", s.handleUsers)
	return mux
}

// Start begins serving the API. It returns an error channel that receives
// any error from the HTTP server after startup; the channel is closed on
// graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
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

// Addr returns the bound listen address, or empty when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
