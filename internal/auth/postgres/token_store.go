// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/reddical/reddical/internal/auth"
)

// TokenStore implements auth.TokenStore over a reset_tokens table. Only the
// SHA-256 hash of a token is persisted; a database leak does not expose live
// reset links. Expiry is enforced in every query, so an expired row reads
// exactly like a missing one even before cleanup removes it.
type TokenStore struct {
	pool PgxPool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool PgxPool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Set stores token -> userID with the given time-to-live. Re-issuing a token
// replaces the previous binding.
func (s *TokenStore) Set(ctx context.Context, token string, userID ulid.ULID, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reset_tokens (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (token_hash)
		DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
	`, hashToken(token), userID.String(), time.Now().Add(ttl))
	if err != nil {
		return oops.Code("TOKEN_SET_FAILED").
			With("operation", "upsert reset token").
			Wrap(err)
	}
	return nil
}

// Get returns the user ID bound to a live token. Absent and expired tokens
// are indistinguishable: both yield auth.ErrNotFound.
func (s *TokenStore) Get(ctx context.Context, token string) (ulid.ULID, error) {
	var userIDStr string
	err := s.pool.QueryRow(ctx, `
		SELECT user_id
		FROM reset_tokens
		WHERE token_hash = $1 AND expires_at > now()
	`, hashToken(token)).Scan(&userIDStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_GET_FAILED").Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("TOKEN_GET_FAILED").
			With("operation", "parse user id").
			Wrap(err)
	}
	return userID, nil
}

// Delete removes a token and reports whether a live entry was removed. The
// single DELETE is the atomic consume point: of N concurrent calls for one
// token, exactly one sees a row deleted.
func (s *TokenStore) Delete(ctx context.Context, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reset_tokens
		WHERE token_hash = $1 AND expires_at > now()
	`, hashToken(token))
	if err != nil {
		return false, oops.Code("TOKEN_DELETE_FAILED").Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired removes expired rows and returns the count. Intended for a
// periodic cleanup job; correctness does not depend on it.
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reset_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
