// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/reddical/reddical/pkg/errutil"
)

// Default service timings.
const (
	// DefaultNotFoundDelay is waited before answering a forgot-password
	// request for an unknown email, so a network observer cannot cheaply
	// distinguish "exists" from "doesn't" by latency.
	DefaultNotFoundDelay = 5 * time.Second

	// DefaultResetBaseURL is the frontend origin embedded in reset links.
	DefaultResetBaseURL = "http://localhost:3000"
)

// Response is the outcome of an operation that can fail on a named field.
// Exactly one of User or Errors is set.
type Response struct {
	User   *User        `json:"user,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`
}

func errorResponse(field, message string) *Response {
	return &Response{Errors: []FieldError{{Field: field, Message: message}}}
}

// Options tunes service behavior. The zero value yields production defaults.
type Options struct {
	// ResetTokenTTL is the reset-token lifetime. Defaults to ResetTokenTTL.
	ResetTokenTTL time.Duration

	// NotFoundDelay is the artificial forgot-password delay for unknown
	// emails. Defaults to DefaultNotFoundDelay.
	NotFoundDelay time.Duration

	// ResetBaseURL is the base URL for reset links. Defaults to
	// DefaultResetBaseURL.
	ResetBaseURL string

	// Logger receives internal fault logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// Service orchestrates registration, login, logout, and the password-reset
// flow. All caller-correctable failures come back as Response field errors
// with fixed messages; error returns mean internal faults and never carry
// raw collaborator messages to the end user.
type Service struct {
	users    UserRepository
	tokens   TokenStore
	hasher   PasswordHasher
	notifier Notifier
	logger   *slog.Logger

	resetTokenTTL time.Duration
	notFoundDelay time.Duration
	resetBaseURL  string
}

// NewService creates a new Service.
func NewService(users UserRepository, tokens TokenStore, hasher PasswordHasher, notifier Notifier, opts Options) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("token store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("notifier is required")
	}

	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = ResetTokenTTL
	}
	if opts.NotFoundDelay <= 0 {
		opts.NotFoundDelay = DefaultNotFoundDelay
	}
	if opts.ResetBaseURL == "" {
		opts.ResetBaseURL = DefaultResetBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		users:         users,
		tokens:        tokens,
		hasher:        hasher,
		notifier:      notifier,
		logger:        opts.Logger,
		resetTokenTTL: opts.ResetTokenTTL,
		notFoundDelay: opts.NotFoundDelay,
		resetBaseURL:  opts.ResetBaseURL,
	}, nil
}

// CurrentUser returns the user bound to the session, or nil when the session
// is anonymous or references a user that no longer exists.
func (s *Service) CurrentUser(ctx context.Context, sess Session) (*User, error) {
	id, ok := sess.UserID()
	if !ok {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Stale binding; treat as anonymous.
			return nil, nil
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user, nil
}

// ListUsers returns all registered users.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_LIST_USERS_FAILED").Wrap(err)
	}
	return users, nil
}

// Register validates the input, creates the user, and binds it to the
// session. A duplicate username or email comes back as a single field error
// on the synthetic "usernameOrEmail" field; the race against concurrent
// registrations is settled by the directory's uniqueness constraint.
func (s *Service) Register(ctx context.Context, sess Session, username, email, password string) (*Response, error) {
	if fieldErrs := ValidateRegistration(username, email, password); fieldErrs != nil {
		recordOperation("register", resultRejected)
		return &Response{Errors: fieldErrs}, nil
	}

	start := time.Now()
	passwordHash, err := s.hasher.Hash(password)
	observeHash(start)
	if err != nil {
		recordOperation("register", resultFault)
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, email, passwordHash)
	if err != nil {
		recordOperation("register", resultFault)
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "construct user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			recordOperation("register", resultRejected)
			return errorResponse("usernameOrEmail", "username or email already taken"), nil
		}
		recordOperation("register", resultFault)
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			With("username", username).
			Wrap(err)
	}

	if err := sess.Bind(ctx, user.ID); err != nil {
		recordOperation("register", resultFault)
		return nil, oops.Code("AUTH_SESSION_BIND_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	recordOperation("register", resultOK)
	s.logger.Info("user registered", "user_id", user.ID.String(), "username", username)
	return &Response{User: user}, nil
}

// Login authenticates by username or email, disambiguating on the presence
// of an @ in the identifier. The failure messages deliberately reveal
// whether the identifier exists; that behavior is carried over from the
// product design rather than hardened here.
func (s *Service) Login(ctx context.Context, sess Session, usernameOrEmail, password string) (*Response, error) {
	byEmail := strings.Contains(usernameOrEmail, "@")

	var user *User
	var err error
	if byEmail {
		user, err = s.users.GetByEmail(ctx, usernameOrEmail)
	} else {
		user, err = s.users.GetByUsername(ctx, usernameOrEmail)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation("login", resultRejected)
			kind := "username"
			if byEmail {
				kind = "email"
			}
			return errorResponse("usernameOrEmail", fmt.Sprintf("that %s doesn't exist", kind)), nil
		}
		recordOperation("login", resultFault)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "look up user").
			Wrap(err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		recordOperation("login", resultRejected)
		return errorResponse("password", "incorrect password"), nil
	}

	if err := sess.Bind(ctx, user.ID); err != nil {
		recordOperation("login", resultFault)
		return nil, oops.Code("AUTH_SESSION_BIND_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	recordOperation("login", resultOK)
	return &Response{User: user}, nil
}

// Logout destroys the session. It is best-effort from the client's point of
// view: the transport clears the cookie regardless, a destroy failure is
// logged and reported only as a false return.
func (s *Service) Logout(ctx context.Context, sess Session) bool {
	if err := sess.Destroy(ctx); err != nil {
		errutil.LogError(s.logger, "session destroy failed during logout", err)
		recordOperation("logout", resultFault)
		return false
	}
	recordOperation("logout", resultOK)
	return true
}

// ForgotPassword issues a reset token for the account behind email and
// dispatches the reset link. The return value is true in both the known and
// unknown email branches; the unknown branch instead waits a fixed delay so
// the two cannot be told apart cheaply by timing. Email dispatch failures
// are logged, never surfaced.
func (s *Service) ForgotPassword(ctx context.Context, email string) (bool, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.wait(ctx, s.notFoundDelay)
			recordOperation("forgot_password", resultOK)
			return true, nil
		}
		recordOperation("forgot_password", resultFault)
		return false, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "look up user by email").
			Wrap(err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		recordOperation("forgot_password", resultFault)
		return false, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	if err := s.tokens.Set(ctx, token, user.ID, s.resetTokenTTL); err != nil {
		recordOperation("forgot_password", resultFault)
		return false, oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "store token").
			Wrap(err)
	}

	resetLink := fmt.Sprintf("%s/reset-password/%s", s.resetBaseURL, token)
	if err := s.notifier.SendResetEmail(ctx, user.Email, resetLink, user.Username); err != nil {
		// Fire-and-forget: the caller still gets success.
		errutil.LogError(s.logger, "reset email dispatch failed", err)
	}

	recordOperation("forgot_password", resultOK)
	return true, nil
}

// ResetPassword consumes a reset token and sets a new password. Checks
// short-circuit in order: password length, confirmation match, token
// liveness, user existence. The token is single-use: it is atomically
// claimed before the password write, so of N concurrent attempts with the
// same token exactly one succeeds and the rest see it as expired.
// A successful reset also logs the user in.
func (s *Service) ResetPassword(ctx context.Context, sess Session, token, newPassword, confirmPassword string) (*Response, error) {
	if len(newPassword) < MinPasswordLength {
		recordOperation("reset_password", resultRejected)
		return errorResponse("newPassword", "length must be at least 6"), nil
	}
	if confirmPassword != newPassword {
		recordOperation("reset_password", resultRejected)
		return errorResponse("confirmPassword", "password not match"), nil
	}

	userID, err := s.tokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation("reset_password", resultRejected)
			return errorResponse("token", "token expired"), nil
		}
		recordOperation("reset_password", resultFault)
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "look up token").
			Wrap(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordOperation("reset_password", resultRejected)
			return errorResponse("token", "user no longer exists"), nil
		}
		recordOperation("reset_password", resultFault)
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "look up user").
			Wrap(err)
	}

	start := time.Now()
	passwordHash, err := s.hasher.Hash(newPassword)
	observeHash(start)
	if err != nil {
		recordOperation("reset_password", resultFault)
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	// Claim the token before writing the new hash; the loser of a
	// concurrent race must not mutate the account.
	deleted, err := s.tokens.Delete(ctx, token)
	if err != nil {
		recordOperation("reset_password", resultFault)
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "consume token").
			Wrap(err)
	}
	if !deleted {
		recordOperation("reset_password", resultRejected)
		return errorResponse("token", "token expired"), nil
	}

	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		recordOperation("reset_password", resultFault)
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if err := sess.Bind(ctx, user.ID); err != nil {
		recordOperation("reset_password", resultFault)
		return nil, oops.Code("AUTH_SESSION_BIND_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	recordOperation("reset_password", resultOK)
	s.logger.Info("password reset", "user_id", user.ID.String())
	return &Response{User: user}, nil
}

// wait sleeps for d or until the request context is canceled. Only the
// calling request's completion is suspended.
func (s *Service) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
