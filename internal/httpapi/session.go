// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/reddical/reddical/internal/auth"
	"github.com/reddical/reddical/pkg/errutil"
)

// requestSession is the per-request auth.Session implementation. It resolves
// the caller's session cookie against the session repository once, up front,
// and writes cookie changes back through the captured ResponseWriter.
type requestSession struct {
	srv    *Server
	w      http.ResponseWriter
	record *auth.SessionRecord // nil when anonymous
}

// sessionFromRequest resolves the session cookie into a requestSession.
// Missing, unknown, or expired cookies all yield an anonymous session; a
// repository fault is logged and treated as anonymous rather than failing
// the request.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) *requestSession {
	sess := &requestSession{srv: s, w: w}

	cookie, err := r.Cookie(s.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return sess
	}

	record, err := s.sessions.GetByTokenHash(r.Context(), auth.HashSessionToken(cookie.Value))
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			errutil.LogError(s.logger, "session lookup failed", err)
		}
		return sess
	}

	if record.IsExpired() {
		if err := s.sessions.Delete(r.Context(), record.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
			errutil.LogError(s.logger, "expired session cleanup failed", err)
		}
		return sess
	}

	// Best effort; a stale LastSeenAt is harmless.
	if err := s.sessions.UpdateLastSeen(r.Context(), record.ID, time.Now()); err != nil {
		errutil.LogError(s.logger, "session last-seen update failed", err)
	}

	sess.record = record
	return sess
}

// UserID returns the bound user ID, or false when anonymous.
func (rs *requestSession) UserID() (ulid.ULID, bool) {
	if rs.record == nil {
		return ulid.ULID{}, false
	}
	return rs.record.UserID, true
}

// Bind starts a fresh session for userID and sets the session cookie. Any
// prior session for this request is discarded first, so login always rotates
// the token.
func (rs *requestSession) Bind(ctx context.Context, userID ulid.ULID) error {
	if rs.record != nil {
		if err := rs.srv.sessions.Delete(ctx, rs.record.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
			errutil.LogError(rs.srv.logger, "previous session cleanup failed", err)
		}
		rs.record = nil
	}

	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return oops.Code("SESSION_BIND_FAILED").Wrap(err)
	}

	expiresAt := time.Now().Add(rs.srv.cfg.SessionTTL)
	record, err := auth.NewSessionRecord(userID, hash, expiresAt)
	if err != nil {
		return oops.Code("SESSION_BIND_FAILED").Wrap(err)
	}

	if err := rs.srv.sessions.Create(ctx, record); err != nil {
		return oops.Code("SESSION_BIND_FAILED").With("operation", "create session record").Wrap(err)
	}

	rs.record = record
	rs.setCookie(token, expiresAt)
	return nil
}

// Destroy removes the server-side record and clears the cookie. The cookie
// is cleared even when the record delete fails, so the client never keeps a
// pointer to a session the server meant to end.
func (rs *requestSession) Destroy(ctx context.Context) error {
	rs.clearCookie()

	if rs.record == nil {
		return nil
	}
	record := rs.record
	rs.record = nil

	if err := rs.srv.sessions.Delete(ctx, record.ID); err != nil && !errors.Is(err, auth.ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").With("operation", "delete session record").Wrap(err)
	}
	return nil
}

func (rs *requestSession) setCookie(token string, expires time.Time) {
	http.SetCookie(rs.w, &http.Cookie{
		Name:     rs.srv.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   rs.srv.cfg.CookieDomain,
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   rs.srv.cfg.SecureCookies,
	})
}

func (rs *requestSession) clearCookie() {
	http.SetCookie(rs.w, &http.Cookie{
		Name:     rs.srv.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   rs.srv.cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   rs.srv.cfg.SecureCookies,
	})
}
