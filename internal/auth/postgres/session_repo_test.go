// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddical/reddical/internal/auth"
	"github.com/reddical/reddical/internal/auth/postgres"
)

func TestSessionRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewSessionRepository(mock)

	record, err := auth.NewSessionRecord(ulid.Make(), "tokenhash", time.Now().Add(auth.SessionTTL))
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(record.ID.String(), record.UserID.String(), record.TokenHash,
			record.ExpiresAt, record.CreatedAt, record.LastSeenAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(ctx, record))
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns record", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		id, userID := ulid.Make(), ulid.Make()
		now := time.Now()
		rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at", "last_seen_at"}).
			AddRow(id.String(), userID.String(), "tokenhash", now.Add(time.Hour), now, now)
		mock.ExpectQuery(`SELECT id, user_id, token_hash, expires_at, created_at, last_seen_at`).
			WithArgs("tokenhash").
			WillReturnRows(rows)

		record, err := repo.GetByTokenHash(ctx, "tokenhash")
		require.NoError(t, err)
		assert.Equal(t, id, record.ID)
		assert.Equal(t, userID, record.UserID)
	})

	t.Run("missing record maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		mock.ExpectQuery(`SELECT id, user_id, token_hash, expires_at, created_at, last_seen_at`).
			WithArgs("unknown").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByTokenHash(ctx, "unknown")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("deletes record", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		mock.ExpectExec(`DELETE FROM sessions`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, id))
	})

	t.Run("missing record maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewSessionRepository(mock)

		mock.ExpectExec(`DELETE FROM sessions`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(ctx, id)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
