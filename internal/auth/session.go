// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32                  // 32 bytes = 64 hex chars
	SessionTTL        = 30 * 24 * time.Hour // server-side session lifetime
)

// Session is the per-request capability binding the caller to a server-side
// session. It is constructed by the transport layer for each request and
// passed into operations explicitly; a session with no bound user is
// anonymous. Destroy must also invalidate whatever client-held identifier
// (cookie) references the record.
type Session interface {
	// UserID returns the bound user ID, or false when anonymous.
	UserID() (ulid.ULID, bool)

	// Bind associates an authenticated user with the session.
	Bind(ctx context.Context, userID ulid.ULID) error

	// Destroy removes the server-side record and invalidates the
	// client-held identifier.
	Destroy(ctx context.Context) error
}

// SessionRecord is the server-side session state. The client holds only the
// opaque plaintext token; the record stores its SHA-256 hash.
type SessionRecord struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewSessionRecord creates a validated SessionRecord.
func NewSessionRecord(userID ulid.ULID, tokenHash string, expiresAt time.Time) (*SessionRecord, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now()
	return &SessionRecord{
		ID:         ulid.Make(),
		UserID:     userID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *SessionRecord) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is persisted.
func GenerateSessionToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}

	token = hex.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken reports whether the plaintext token matches the stored
// hash, in constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages server-side session persistence.
type SessionRepository interface {
	// Create stores a new session record.
	Create(ctx context.Context, record *SessionRecord) error

	// GetByTokenHash retrieves a session record by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// Delete removes a session record by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes all expired session records and returns the
	// count of deleted rows.
	DeleteExpired(ctx context.Context) (int64, error)
}
