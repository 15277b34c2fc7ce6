// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddical/reddical/internal/auth"
	"github.com/reddical/reddical/internal/auth/postgres"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func userColumns() []string {
	return []string{"id", "username", "email", "password_hash", "created_at", "updated_at"}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	user, err := auth.NewUser("alice", "alice@example.com", "$argon2id$hash")
	require.NoError(t, err)

	t.Run("inserts user", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, user))
	})

	t.Run("unique violation maps to ErrConflict", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrConflict)
	})

	t.Run("other database errors are not conflicts", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
			WillReturnError(errors.New("connection refused"))

		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrConflict)
	})
}

func TestUserRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	now := time.Now()

	t.Run("returns user", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		rows := pgxmock.NewRows(userColumns()).
			AddRow(id.String(), "alice", "alice@example.com", "$argon2id$hash", now, now)
		mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
			WithArgs("alice").
			WillReturnRows(rows)

		user, err := repo.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByUsername(ctx, "ghost")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(ctx, "ghost@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("updates existing user", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectExec(`UPDATE users`).
			WithArgs(id.String(), "$argon2id$newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdatePassword(ctx, id, "$argon2id$newhash"))
	})

	t.Run("missing user maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		repo := postgres.NewUserRepository(mock)

		mock.ExpectExec(`UPDATE users`).
			WithArgs(id.String(), "$argon2id$newhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePassword(ctx, id, "$argon2id$newhash")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := postgres.NewUserRepository(mock)

	now := time.Now()
	id1, id2 := ulid.Make(), ulid.Make()
	rows := pgxmock.NewRows(userColumns()).
		AddRow(id1.String(), "alice", "alice@example.com", "h1", now, now).
		AddRow(id2.String(), "bob", "bob@example.com", "h2", now, now)
	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at`).
		WillReturnRows(rows)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}
