// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reddical/reddical/internal/auth"
	"github.com/reddical/reddical/internal/auth/mocks"
)

// testService wires a Service against fresh mocks with fast test timings.
func testService(t *testing.T) (*auth.Service, *mocks.MockUserRepository, *mocks.MockTokenStore, *mocks.MockPasswordHasher, *mocks.MockNotifier) {
	t.Helper()

	users := mocks.NewMockUserRepository(t)
	tokens := mocks.NewMockTokenStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	notifier := mocks.NewMockNotifier(t)

	svc, err := auth.NewService(users, tokens, hasher, notifier, auth.Options{
		NotFoundDelay: 50 * time.Millisecond,
		ResetBaseURL:  "http://localhost:3000",
		Logger:        slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	return svc, users, tokens, hasher, notifier
}

func TestNewService_NilDependencies(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	tokens := mocks.NewMockTokenStore(t)
	hasher := mocks.NewMockPasswordHasher(t)
	notifier := mocks.NewMockNotifier(t)

	tests := []struct {
		name        string
		users       auth.UserRepository
		tokens      auth.TokenStore
		hasher      auth.PasswordHasher
		notifier    auth.Notifier
		expectError string
	}{
		{"nil user repository", nil, tokens, hasher, notifier, "user repository is required"},
		{"nil token store", users, nil, hasher, notifier, "token store is required"},
		{"nil password hasher", users, tokens, nil, notifier, "password hasher is required"},
		{"nil notifier", users, tokens, hasher, nil, "notifier is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.tokens, tt.hasher, tt.notifier, auth.Options{})
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success creates user and binds session", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		hasher.On("Hash", "secret1").Return("$argon2id$fakehash", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(nil)
		sess.On("Bind", ctx, mock.AnythingOfType("ulid.ULID")).Return(nil)

		resp, err := svc.Register(ctx, sess, "alice", "alice@example.com", "secret1")
		require.NoError(t, err)
		require.NotNil(t, resp.User)
		assert.Empty(t, resp.Errors)
		assert.Equal(t, "alice", resp.User.Username)
		assert.Equal(t, "alice@example.com", resp.User.Email)
		assert.Equal(t, "$argon2id$fakehash", resp.User.PasswordHash)
	})

	t.Run("validation failure touches nothing", func(t *testing.T) {
		svc, _, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		resp, err := svc.Register(ctx, sess, "ab", "a@b.com", "secret1")
		require.NoError(t, err)
		assert.Nil(t, resp.User)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "username", resp.Errors[0].Field)
		assert.Equal(t, "length must be at least 3", resp.Errors[0].Message)
	})

	t.Run("uniqueness conflict maps to usernameOrEmail error", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		hasher.On("Hash", "secret1").Return("$argon2id$fakehash", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(auth.ErrConflict)

		resp, err := svc.Register(ctx, sess, "alice", "alice@example.com", "secret1")
		require.NoError(t, err)
		assert.Nil(t, resp.User)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "usernameOrEmail", resp.Errors[0].Field)
		assert.Equal(t, "username or email already taken", resp.Errors[0].Message)
	})

	t.Run("wrapped conflict is still recognized", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		wrapped := errors.Join(errors.New("insert users"), auth.ErrConflict)
		hasher.On("Hash", "secret1").Return("$argon2id$fakehash", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(wrapped)

		resp, err := svc.Register(ctx, sess, "alice", "alice@example.com", "secret1")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "usernameOrEmail", resp.Errors[0].Field)
	})

	t.Run("storage fault surfaces as error", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		hasher.On("Hash", "secret1").Return("$argon2id$fakehash", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(errors.New("connection refused"))

		resp, err := svc.Register(ctx, sess, "alice", "alice@example.com", "secret1")
		require.Error(t, err)
		assert.Nil(t, resp)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	user := &auth.User{
		ID:           ulid.Make(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$storedhash",
	}

	t.Run("identifier with @ looks up by email", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		hasher.On("Verify", "secret1", user.PasswordHash).Return(true)
		sess.On("Bind", ctx, user.ID).Return(nil)

		resp, err := svc.Login(ctx, sess, "alice@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, user, resp.User)
	})

	t.Run("identifier without @ looks up by username", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		users.On("GetByUsername", ctx, "alice").Return(user, nil)
		hasher.On("Verify", "secret1", user.PasswordHash).Return(true)
		sess.On("Bind", ctx, user.ID).Return(nil)

		resp, err := svc.Login(ctx, sess, "alice", "secret1")
		require.NoError(t, err)
		assert.Equal(t, user, resp.User)
	})

	t.Run("unknown email mentions email in message", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		users.On("GetByEmail", ctx, "x@y.com").Return(nil, auth.ErrNotFound)

		resp, err := svc.Login(ctx, sess, "x@y.com", "secret1")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "usernameOrEmail", resp.Errors[0].Field)
		assert.Equal(t, "that email doesn't exist", resp.Errors[0].Message)
	})

	t.Run("unknown username mentions username in message", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		users.On("GetByUsername", ctx, "ghost").Return(nil, auth.ErrNotFound)

		resp, err := svc.Login(ctx, sess, "ghost", "secret1")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "that username doesn't exist", resp.Errors[0].Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, users, _, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		users.On("GetByUsername", ctx, "alice").Return(user, nil)
		hasher.On("Verify", "wrong", user.PasswordHash).Return(false)

		resp, err := svc.Login(ctx, sess, "alice", "wrong")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "password", resp.Errors[0].Field)
		assert.Equal(t, "incorrect password", resp.Errors[0].Message)
	})

	t.Run("lookup fault surfaces as error", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		users.On("GetByUsername", ctx, "alice").Return(nil, errors.New("connection refused"))

		resp, err := svc.Login(ctx, sess, "alice", "secret1")
		require.Error(t, err)
		assert.Nil(t, resp)
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("clean destroy returns true", func(t *testing.T) {
		svc, _, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)
		sess.On("Destroy", ctx).Return(nil)

		assert.True(t, svc.Logout(ctx, sess))
	})

	t.Run("destroy error returns false", func(t *testing.T) {
		svc, _, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)
		sess.On("Destroy", ctx).Return(errors.New("session store unavailable"))

		assert.False(t, svc.Logout(ctx, sess))
	})
}

func TestService_ForgotPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("known email stores token and sends mail", func(t *testing.T) {
		svc, users, tokens, _, notifier := testService(t)

		user := &auth.User{ID: ulid.Make(), Username: "alice", Email: "alice@example.com"}
		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)

		var storedToken string
		tokens.On("Set", ctx, mock.AnythingOfType("string"), user.ID, auth.ResetTokenTTL).
			Run(func(args mock.Arguments) { storedToken = args.String(1) }).
			Return(nil)
		notifier.On("SendResetEmail", ctx, "alice@example.com", mock.AnythingOfType("string"), "alice").
			Return(nil)

		ok, err := svc.ForgotPassword(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NotEmpty(t, storedToken)
		notifier.AssertCalled(t, "SendResetEmail", ctx, "alice@example.com",
			"http://localhost:3000/reset-password/"+storedToken, "alice")
	})

	t.Run("unknown email waits and issues no token", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)

		users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, auth.ErrNotFound)

		start := time.Now()
		ok, err := svc.ForgotPassword(ctx, "ghost@example.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.True(t, ok, "success value must match the known-email branch")
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
		// No expectations were set on the token store or notifier; the
		// mocks fail the test if either is touched.
	})

	t.Run("canceled context aborts the delay", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		users.On("GetByEmail", cctx, "ghost@example.com").Return(nil, auth.ErrNotFound)

		start := time.Now()
		ok, err := svc.ForgotPassword(cctx, "ghost@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("mail failure still reports success", func(t *testing.T) {
		svc, users, tokens, _, notifier := testService(t)

		user := &auth.User{ID: ulid.Make(), Username: "alice", Email: "alice@example.com"}
		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		tokens.On("Set", ctx, mock.AnythingOfType("string"), user.ID, auth.ResetTokenTTL).Return(nil)
		notifier.On("SendResetEmail", ctx, "alice@example.com", mock.AnythingOfType("string"), "alice").
			Return(errors.New("smtp unreachable"))

		ok, err := svc.ForgotPassword(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("token store failure surfaces as error", func(t *testing.T) {
		svc, users, tokens, _, _ := testService(t)

		user := &auth.User{ID: ulid.Make(), Username: "alice", Email: "alice@example.com"}
		users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)
		tokens.On("Set", ctx, mock.AnythingOfType("string"), user.ID, auth.ResetTokenTTL).
			Return(errors.New("store unavailable"))

		ok, err := svc.ForgotPassword(ctx, "alice@example.com")
		require.Error(t, err)
		assert.False(t, ok)
	})
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	user := &auth.User{
		ID:           ulid.Make(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$oldhash",
	}

	t.Run("success updates password, logs in, consumes token", func(t *testing.T) {
		svc, users, tokens, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		tokens.On("Get", ctx, "sometoken").Return(user.ID, nil)
		users.On("GetByID", ctx, user.ID).Return(user, nil)
		hasher.On("Hash", "newsecret").Return("$argon2id$newhash", nil)
		tokens.On("Delete", ctx, "sometoken").Return(true, nil)
		users.On("UpdatePassword", ctx, user.ID, "$argon2id$newhash").Return(nil)
		sess.On("Bind", ctx, user.ID).Return(nil)

		resp, err := svc.ResetPassword(ctx, sess, "sometoken", "newsecret", "newsecret")
		require.NoError(t, err)
		assert.Equal(t, user, resp.User)
	})

	t.Run("short new password", func(t *testing.T) {
		svc, _, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		resp, err := svc.ResetPassword(ctx, sess, "sometoken", "12345", "12345")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "newPassword", resp.Errors[0].Field)
		assert.Equal(t, "length must be at least 6", resp.Errors[0].Message)
	})

	t.Run("mismatched confirmation touches neither store nor directory", func(t *testing.T) {
		svc, _, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		resp, err := svc.ResetPassword(ctx, sess, "sometoken", "newsecret", "different")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "confirmPassword", resp.Errors[0].Field)
		// No mock expectations set: any store or directory call fails the test.
	})

	t.Run("missing or expired token", func(t *testing.T) {
		svc, _, tokens, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		tokens.On("Get", ctx, "expiredtoken").Return(nil, auth.ErrNotFound)

		resp, err := svc.ResetPassword(ctx, sess, "expiredtoken", "newsecret", "newsecret")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "token", resp.Errors[0].Field)
		assert.Equal(t, "token expired", resp.Errors[0].Message)
	})

	t.Run("user no longer exists", func(t *testing.T) {
		svc, users, tokens, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		gone := ulid.Make()
		tokens.On("Get", ctx, "sometoken").Return(gone, nil)
		users.On("GetByID", ctx, gone).Return(nil, auth.ErrNotFound)

		resp, err := svc.ResetPassword(ctx, sess, "sometoken", "newsecret", "newsecret")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "token", resp.Errors[0].Field)
		assert.Equal(t, "user no longer exists", resp.Errors[0].Message)
	})

	t.Run("losing the consume race reads as expired", func(t *testing.T) {
		svc, users, tokens, hasher, _ := testService(t)
		sess := mocks.NewMockSession(t)

		tokens.On("Get", ctx, "sometoken").Return(user.ID, nil)
		users.On("GetByID", ctx, user.ID).Return(user, nil)
		hasher.On("Hash", "newsecret").Return("$argon2id$newhash", nil)
		// Another request consumed the token between Get and Delete.
		tokens.On("Delete", ctx, "sometoken").Return(false, nil)

		resp, err := svc.ResetPassword(ctx, sess, "sometoken", "newsecret", "newsecret")
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "token", resp.Errors[0].Field)
		assert.Equal(t, "token expired", resp.Errors[0].Message)
		users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_CurrentUser(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous session yields nil", func(t *testing.T) {
		svc, _, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)
		sess.On("UserID").Return(nil, false)

		user, err := svc.CurrentUser(ctx, sess)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("bound session yields user", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		u := &auth.User{ID: ulid.Make(), Username: "alice"}
		sess.On("UserID").Return(u.ID, true)
		users.On("GetByID", ctx, u.ID).Return(u, nil)

		user, err := svc.CurrentUser(ctx, sess)
		require.NoError(t, err)
		assert.Equal(t, u, user)
	})

	t.Run("stale binding yields nil", func(t *testing.T) {
		svc, users, _, _, _ := testService(t)
		sess := mocks.NewMockSession(t)

		id := ulid.Make()
		sess.On("UserID").Return(id, true)
		users.On("GetByID", ctx, id).Return(nil, auth.ErrNotFound)

		user, err := svc.CurrentUser(ctx, sess)
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestService_ListUsers(t *testing.T) {
	ctx := context.Background()
	svc, users, _, _, _ := testService(t)

	all := []*auth.User{
		{ID: ulid.Make(), Username: "alice"},
		{ID: ulid.Make(), Username: "bob"},
	}
	users.On("List", ctx).Return(all, nil)

	got, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, got)
}
