package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"library-service/library"

	"github.com/gofiber/fiber/v2"
)

const (
	HeaderAuthUser = "X-Auth-User"
	HeaderAuthRole = "X-Auth-Role"

	callerKey = "caller"
)

// Authenticator turns request credentials into a Caller. A request without
// credentials yields library.Anonymous; bad credentials yield an error
// wrapping library.ErrNotAuthenticated.
type Authenticator interface {
	Authenticate(c *fiber.Ctx) (library.Caller, error)
	// Challenge is the WWW-Authenticate value sent with 401 responses, or "".
	Challenge() string
}

// UserStore verifies a username/password pair.
type UserStore interface {
	AuthenticateUser(ctx context.Context, username, password string) (library.Caller, error)
}

// BasicAuthenticator checks HTTP Basic credentials against the users table.
type BasicAuthenticator struct {
	Users UserStore
	Realm string
}

func (a BasicAuthenticator) Authenticate(c *fiber.Ctx) (library.Caller, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return library.Anonymous, nil
	}

	scheme, payload, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "basic") {
		return library.Anonymous, fmt.Errorf("unsupported authorization scheme: %w", library.ErrNotAuthenticated)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return library.Anonymous, fmt.Errorf("malformed basic credentials: %w", library.ErrNotAuthenticated)
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return library.Anonymous, fmt.Errorf("malformed basic credentials: %w", library.ErrNotAuthenticated)
	}

	return a.Users.AuthenticateUser(c.UserContext(), username, password)
}

func (a BasicAuthenticator) Challenge() string {
	realm := a.Realm
	if realm == "" {
		realm = "library"
	}
	return fmt.Sprintf("Basic realm=%q", realm)
}

// HeaderAuthenticator trusts identity headers set by an upstream proxy.
// A user without a role header is an ordinary user.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(c *fiber.Ctx) (library.Caller, error) {
	username := strings.TrimSpace(c.Get(HeaderAuthUser))
	if username == "" {
		return library.Anonymous, nil
	}

	role := library.RoleUser
	if raw := strings.TrimSpace(c.Get(HeaderAuthRole)); raw != "" {
		parsed, ok := library.ParseRole(strings.ToLower(raw))
		if !ok {
			return library.Anonymous, fmt.Errorf("unknown role %q: %w", raw, library.ErrNotAuthenticated)
		}
		role = parsed
	}
	return library.Caller{Username: username, Role: role}, nil
}

func (HeaderAuthenticator) Challenge() string { return "" }

func authenticate(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := a.Authenticate(c)
		if err != nil {
			return err
		}
		c.Locals(callerKey, caller)
		return c.Next()
	}
}

func callerOf(c *fiber.Ctx) library.Caller {
	caller, _ := c.Locals(callerKey).(library.Caller)
	return caller
}
