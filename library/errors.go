package library

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when an operation needs an identified caller and got none.
	ErrNotAuthenticated = errors.New("authentication credentials were not provided")
	// ErrPermissionDenied is returned when the caller is known but lacks the required role.
	ErrPermissionDenied = errors.New("you do not have permission to perform this action")
)

const nonFieldErrors = "non_field_errors"

// ValidationError maps request fields to the problems found with them.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Has reports whether field already carries an error.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// Err returns nil when nothing was added, so callers can `return verr.Err()`.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	verr := &ValidationError{}
	verr.Add(field, msg)
	return verr
}

// NotFoundError reports a missing entity. Field is set when the id came from a
// reference inside a write (author, book, member) rather than from the path.
type NotFoundError struct {
	Resource Resource
	ID       int64
	Field    string
}

func (e *NotFoundError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s %d does not exist", e.Field, e.Resource, e.ID)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// AuthorizationError is returned by Authorize. It wraps ErrNotAuthenticated or
// ErrPermissionDenied.
type AuthorizationError struct {
	Resource  Resource
	Operation Operation
	Err       error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Resource, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }
