// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/reddical/reddical/internal/auth"
	"github.com/reddical/reddical/pkg/errutil"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type meResponse struct {
	User *auth.User `json:"user"`
}

type usersResponse struct {
	Users []*auth.User `json:"users"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may disconnect mid-write
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (s *Server) serverErr(w http.ResponseWriter, msg string, err error) {
	errutil.LogError(s.logger, msg, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_server_error"})
}

// POST /api/register
// Body: { "username": "...", "email": "...", "password": "..." }
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json")
		return
	}

	sess := s.sessionFromRequest(w, r)
	resp, err := s.svc.Register(r.Context(), sess, req.Username, req.Email, req.Password)
	if err != nil {
		s.serverErr(w, "register failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/login
// Body: { "usernameOrEmail": "...", "password": "..." }
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json")
		return
	}

	sess := s.sessionFromRequest(w, r)
	resp, err := s.svc.Login(r.Context(), sess, req.UsernameOrEmail, req.Password)
	if err != nil {
		s.serverErr(w, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/logout
// Always clears the cookie; ok reports whether the server-side record was
// removed too.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFromRequest(w, r)
	ok := s.svc.Logout(r.Context(), sess)
	writeJSON(w, http.StatusOK, okResponse{OK: ok})
}

// POST /api/forgot-password
// Body: { "email": "..." }
// Responds ok:true whether or not the email is known.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json")
		return
	}

	ok, err := s.svc.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		s.serverErr(w, "forgot password failed", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: ok})
}

// POST /api/reset-password
// Body: { "token": "...", "newPassword": "...", "confirmPassword": "..." }
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_json")
		return
	}

	sess := s.sessionFromRequest(w, r)
	resp, err := s.svc.ResetPassword(r.Context(), sess, req.Token, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		s.serverErr(w, "reset password failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/me
// Returns user:null for anonymous callers rather than 401, so frontends can
// probe identity without error handling.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFromRequest(w, r)
	user, err := s.svc.CurrentUser(r.Context(), sess)
	if err != nil {
		s.serverErr(w, "current user lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user})
}

// GET /api/users
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		s.serverErr(w, "user list failed", err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}
