// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32               // 32 bytes = 64 hex chars, 256 bits of entropy
	ResetTokenTTL   = 10 * time.Minute // tokens self-expire in the store
)

// TokenStore is a TTL-capable key-value store mapping opaque reset tokens to
// user IDs. Entries expire server-side; an expired token reads exactly like
// one that never existed.
type TokenStore interface {
	// Set stores token -> userID with the given time-to-live.
	Set(ctx context.Context, token string, userID ulid.ULID, ttl time.Duration) error

	// Get returns the user ID bound to a live token, or ErrNotFound
	// (wrapped) when the token is absent or expired.
	Get(ctx context.Context, token string) (ulid.ULID, error)

	// Delete removes a token and reports whether a live entry was removed.
	// The check-and-remove is atomic with respect to concurrent Delete
	// calls: of N racing consumers of one token, exactly one observes true.
	Delete(ctx context.Context, token string) (bool, error)
}

// GenerateResetToken creates a URL-safe opaque token for the reset-password
// flow. The token carries no decodable structure; it is purely a lookup key.
func GenerateResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
