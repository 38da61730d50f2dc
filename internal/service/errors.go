package service

import (
	"errors"
	"fmt"
	"strings"
)

// Service errors.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleNameRequired    = errors.New("role name cannot be empty")
	ErrRoleNameTaken       = errors.New("role name already exists")
	ErrSystemRoleImmutable = errors.New("system role cannot be changed this way")
	ErrUnknownPermission   = errors.New("unknown permission")
)

// UnknownPermissionsError lists names that are not in the catalog.
type UnknownPermissionsError struct {
	Names []string
}

func (e *UnknownPermissionsError) Error() string {
	return fmt.Sprintf("unknown permissions: %s", strings.Join(e.Names, ", "))
}

func (e *UnknownPermissionsError) Unwrap() error { return ErrUnknownPermission }

// SystemRoleError explains why a system role change was rejected.
type SystemRoleError struct {
	RoleID int
	Reason string
	// Names lists enum fallback permissions the change would have removed.
	Names []string
}

func (e *SystemRoleError) Error() string {
	if len(e.Names) > 0 {
		return fmt.Sprintf("system role %d: %s: %s", e.RoleID, e.Reason, strings.Join(e.Names, ", "))
	}
	return fmt.Sprintf("system role %d: %s", e.RoleID, e.Reason)
}

func (e *SystemRoleError) Unwrap() error { return ErrSystemRoleImmutable }
