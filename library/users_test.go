package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndAuthenticateUser(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	id, err := db.AddUser(ctx, " librarian ", "s3cret", RoleAdmin)
	require.NoError(t, err)
	assert.NotZero(t, id)

	u, err := db.GetUser(ctx, "librarian")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.Equal(t, RoleAdmin, u.Role)

	caller, err := db.AuthenticateUser(ctx, "librarian", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, Caller{Username: "librarian", Role: RoleAdmin}, caller)
	assert.True(t, caller.IsAdmin())
}

func TestAuthenticateUserRejectsBadCredentials(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	_, err := db.AddUser(ctx, "alice", "right", RoleUser)
	require.NoError(t, err)

	caller, err := db.AuthenticateUser(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, Anonymous, caller)

	_, err = db.AuthenticateUser(ctx, "nobody", "right")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAddUserValidation(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	_, err := db.AddUser(ctx, "", "pw", RoleUser)
	requireFieldError(t, err, "username", msgBlank)

	_, err = db.AddUser(ctx, "bob", " ", RoleUser)
	requireFieldError(t, err, "password", msgBlank)

	_, err = db.AddUser(ctx, "bob", "pw", Role("owner"))
	requireFieldError(t, err, "role", `"owner" is not a valid choice.`)

	_, err = db.AddUser(ctx, "bob", "pw", RoleUser)
	require.NoError(t, err)
	_, err = db.AddUser(ctx, "bob", "pw2", RoleUser)
	requireFieldError(t, err, "username", "user with this username already exists.")
}

func TestSetUserPassword(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	_, err := db.AddUser(ctx, "alice", "old", RoleUser)
	require.NoError(t, err)

	require.NoError(t, db.SetUserPassword(ctx, "alice", "new"))

	_, err = db.AuthenticateUser(ctx, "alice", "old")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = db.AuthenticateUser(ctx, "alice", "new")
	assert.NoError(t, err)

	assert.Error(t, db.SetUserPassword(ctx, "ghost", "pw"))
}
