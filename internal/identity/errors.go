package identity

import (
	"errors"
	"fmt"
)

// Failure taxonomy returned by the engine and store. The transport layer maps
// these to status codes; raw storage errors never cross the boundary.
var (
	// ErrInvalidInput marks a missing or malformed request field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials covers unknown username, wrong password and a
	// user without an active role. Deliberately undifferentiated so a caller
	// cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateUsername is returned when registration hits an existing
	// username, whether via the pre-check or the unique constraint.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidRole is returned when registration names a role that does
	// not exist or is inactive.
	ErrInvalidRole = errors.New("unknown or inactive role")

	// ErrStorageUnavailable wraps unexpected persistence failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError says which field failed validation; it unwraps to
// ErrInvalidInput so callers can match the class without the detail.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid input: field %s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

func fieldErr(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
