package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"golang.org/x/crypto/bcrypt"
)

// User is an API account. Users only exist to authenticate callers; they are
// not part of the library catalog.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// AddUser creates an API user with a bcrypt-hashed password.
func (d *Database) AddUser(ctx context.Context, username, password string, role Role) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, fieldError("username", msgBlank)
	}
	if strings.TrimSpace(password) == "" {
		return 0, fieldError("password", msgBlank)
	}
	if _, ok := ParseRole(string(role)); !ok {
		return 0, fieldError("role", fmt.Sprintf("%q is not a valid choice.", string(role)))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	return d.insert(ctx, d.db, "users", ResourceUser, map[string]any{
		"username":      username,
		"password_hash": string(hash),
		"role":          string(role),
		"created_at":    d.now(),
	})
}

// GetUser looks a user up by name.
func (d *Database) GetUser(ctx context.Context, username string) (*User, error) {
	query, args, err := d.sb.Select("*").From("users").Where(squirrel.Eq{"username": username}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var u User
	if err := d.db.GetContext(ctx, &u, query, args...); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserPassword replaces the stored hash of username.
func (d *Database) SetUserPassword(ctx context.Context, username, password string) error {
	if strings.TrimSpace(password) == "" {
		return fieldError("password", msgBlank)
	}

	u, err := d.GetUser(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %q does not exist", username)
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return d.update(ctx, d.db, "users", ResourceUser, u.ID, map[string]any{"password_hash": string(hash)})
}

// AuthenticateUser verifies credentials and returns the matching caller.
// Unknown users and wrong passwords both yield ErrNotAuthenticated.
func (d *Database) AuthenticateUser(ctx context.Context, username, password string) (Caller, error) {
	u, err := d.GetUser(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return Anonymous, fmt.Errorf("invalid username or password: %w", ErrNotAuthenticated)
	}
	if err != nil {
		return Anonymous, fmt.Errorf("authenticate %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Anonymous, fmt.Errorf("invalid username or password: %w", ErrNotAuthenticated)
	}
	return Caller{Username: u.Username, Role: u.Role}, nil
}
