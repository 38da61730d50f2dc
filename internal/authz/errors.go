package authz

import (
	"errors"
	"fmt"
)

// ErrInvalidPrincipalState is the sentinel behind InvalidPrincipalStateError.
var ErrInvalidPrincipalState = errors.New("invalid principal state")

// InvalidPrincipalStateError means the principal's legacy role enum holds a value
// outside the known set. It must never be downgraded to a default role.
type InvalidPrincipalStateError struct {
	UserID int
	Value  string
}

func (e *InvalidPrincipalStateError) Error() string {
	return fmt.Sprintf("invalid principal state: user %d has unrecognized legacy role %q", e.UserID, e.Value)
}

func (e *InvalidPrincipalStateError) Unwrap() error { return ErrInvalidPrincipalState }

// PermissionMissingError is the expected denial outcome of Authorize.
type PermissionMissingError struct {
	Permission string
}

func (e *PermissionMissingError) Error() string {
	return fmt.Sprintf("permission missing: %s", e.Permission)
}
