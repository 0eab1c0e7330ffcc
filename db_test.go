package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// runStoreSuite exercises the Store contract shared by every adapter.
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	alice := &User{ID: "id-alice", Name: "Alice", Email: "a@x.com", Username: "abcde", PasswordHash: "hash-a"}
	require.NoError(t, store.CreateUser(ctx, alice))

	t.Run("get by id and email", func(t *testing.T) {
		byID, err := store.GetUserByID(ctx, "id-alice")
		require.NoError(t, err)
		require.Equal(t, "a@x.com", byID.Email)

		byEmail, err := store.GetUserByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		require.Equal(t, "id-alice", byEmail.ID)

		_, err = store.GetUserByID(ctx, "no-such-id")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetUserByEmail(ctx, "nobody@x.com")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create rejects reused id", func(t *testing.T) {
		err := store.CreateUser(ctx, &User{ID: "id-alice", Name: "Eve", Email: "c@x.com", Username: "cdefg", PasswordHash: "h"})
		require.Error(t, err)

		// The original row survives.
		got, gerr := store.GetUserByID(ctx, "id-alice")
		require.NoError(t, gerr)
		require.Equal(t, "a@x.com", got.Email)
	})

	t.Run("uniqueness violations carry the field", func(t *testing.T) {
		err := store.CreateUser(ctx, &User{ID: "id-dup1", Name: "Bob", Email: "a@x.com", Username: "bcdef", PasswordHash: "h"})
		var dup *DuplicateError
		require.ErrorAs(t, err, &dup)
		require.Equal(t, "email", dup.Field)

		err = store.CreateUser(ctx, &User{ID: "id-dup2", Name: "Bob", Email: "b@x.com", Username: "abcde", PasswordHash: "h"})
		require.ErrorAs(t, err, &dup)
		require.Equal(t, "username", dup.Field)
	})

	t.Run("update", func(t *testing.T) {
		alice.Name = "Alicia"
		alice.PasswordHash = "hash-a2"
		require.NoError(t, store.UpdateUser(ctx, alice))

		got, err := store.GetUserByID(ctx, "id-alice")
		require.NoError(t, err)
		require.Equal(t, "Alicia", got.Name)
		require.Equal(t, "hash-a2", got.PasswordHash)

		require.ErrorIs(t, store.UpdateUser(ctx, &User{ID: "no-such-id"}), ErrNotFound)
	})

	t.Run("tokens", func(t *testing.T) {
		require.NoError(t, store.AddAuthToken(ctx, &AuthToken{Token: "tok-1", UserID: "id-alice", IssuedAt: time.Now()}))
		require.NoError(t, store.AddAuthToken(ctx, &AuthToken{Token: "tok-2", UserID: "id-alice", IssuedAt: time.Now()}))

		tokens, err := store.ListAuthTokens(ctx, "id-alice")
		require.NoError(t, err)
		require.Len(t, tokens, 2)
	})

	t.Run("delete cascades tokens", func(t *testing.T) {
		require.NoError(t, store.DeleteUser(ctx, "id-alice"))

		_, err := store.GetUserByID(ctx, "id-alice")
		require.ErrorIs(t, err, ErrNotFound)

		tokens, err := store.ListAuthTokens(ctx, "id-alice")
		require.NoError(t, err)
		require.Empty(t, tokens)

		require.ErrorIs(t, store.DeleteUser(ctx, "id-alice"), ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		bob := &User{ID: "id-bob", Name: "Bob", Email: "b@x.com", Username: "bcdef", PasswordHash: "hash-b"}
		require.NoError(t, store.CreateUser(ctx, bob))

		users, err := store.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
	})
}

func TestMemStore(t *testing.T) {
	runStoreSuite(t, NewMemStore())
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "users_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.close() })

	runStoreSuite(t, store)
}

func TestSQLiteStore_CorruptTimestamp(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "users_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.close() })

	// A row written outside the adapter with an unparseable timestamp must
	// surface as an error, not as a zero time.
	_, err = store.db.ExecContext(ctx,
		`INSERT INTO users(id,name,email,username,password_hash,created_at) VALUES(?,?,?,?,?,?)`,
		"id-bad", "Mallory", "m@x.com", "mnopq", "h", "not-a-timestamp")
	require.NoError(t, err)

	_, err = store.GetUserByID(ctx, "id-bad")
	require.ErrorContains(t, err, "created_at")

	_, err = store.ListUsers(ctx)
	require.ErrorContains(t, err, "created_at")

	_, err = store.db.ExecContext(ctx,
		`INSERT INTO auth_tokens(token,user_id,issued_at) VALUES(?,?,?)`,
		"tok-bad", "id-bad", "not-a-timestamp")
	require.NoError(t, err)

	_, err = store.ListAuthTokens(ctx, "id-bad")
	require.ErrorContains(t, err, "issued_at")
}
