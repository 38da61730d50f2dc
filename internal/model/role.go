package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// ErrMalformedLegacyPermissions is returned when a role's legacy JSON column is
// present but does not hold an array of strings.
var ErrMalformedLegacyPermissions = errors.New("legacy permissions are not a JSON array of strings")

// Role represents an RBAC role. System roles mirror one legacy enum value and
// cannot be deleted; custom roles are administrator defined.
type Role struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Color       string      `json:"color,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	IsSystem    bool        `json:"is_system"`
	LegacyRole  *LegacyRole `json:"legacy_role,omitempty"`
	// LegacyPermissions is the raw historical JSON mirror of the role's
	// permissions. It may be stale, absent or malformed.
	LegacyPermissions json.RawMessage `json:"-"`
	Bindings          []RoleBinding   `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RoleBinding is one row of role_permissions.
type RoleBinding struct {
	PermissionID   int       `json:"permission_id"`
	PermissionName string    `json:"permission"`
	CreatedAt      time.Time `json:"created_at"`
}

// BindingNames returns the permission names reached through relational bindings.
func (r *Role) BindingNames() []string {
	names := make([]string, 0, len(r.Bindings))
	for _, b := range r.Bindings {
		if b.PermissionName != "" {
			names = append(names, b.PermissionName)
		}
	}
	return names
}

// LegacyPermissionNames decodes the legacy JSON column. An absent column (nil,
// empty or JSON null) yields no names and no error.
func (r *Role) LegacyPermissionNames() ([]string, error) {
	raw := bytes.TrimSpace(r.LegacyPermissions)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, ErrMalformedLegacyPermissions
	}
	return names, nil
}

// PermissionNames returns the sorted union of binding names and legacy JSON
// names. A malformed legacy column is skipped; the returned error reports it
// but the names are still usable.
func (r *Role) PermissionNames() ([]string, error) {
	seen := make(map[string]struct{})
	for _, n := range r.BindingNames() {
		seen[n] = struct{}{}
	}
	legacy, err := r.LegacyPermissionNames()
	for _, n := range legacy {
		if n != "" {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, err
}

// SignalsSuperAdmin reports whether the role stands for the super-admin tier.
func (r *Role) SignalsSuperAdmin() bool {
	return r.LegacyRole != nil && r.LegacyRole.IsSuperAdmin()
}

// RoleWithPermissions is the API view of a role.
type RoleWithPermissions struct {
	*Role
	Permissions       []string `json:"permissions"`
	LegacyPermissions []string `json:"legacy_permissions,omitempty"`
	LegacyMalformed   bool     `json:"legacy_malformed,omitempty"`
}

// NewRoleWithPermissions builds the API view of r.
func NewRoleWithPermissions(r *Role) RoleWithPermissions {
	legacy, err := r.LegacyPermissionNames()
	bindings := r.BindingNames()
	sort.Strings(bindings)
	return RoleWithPermissions{
		Role:              r,
		Permissions:       bindings,
		LegacyPermissions: legacy,
		LegacyMalformed:   err != nil,
	}
}

// CreateRoleRequest is the payload for creating a custom role.
type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=100"`
	Description string   `json:"description" binding:"max=255"`
	Color       string   `json:"color" binding:"omitempty,hexcolor"`
	Icon        string   `json:"icon" binding:"max=64"`
	Permissions []string `json:"permissions" binding:"dive,required,max=100,permission"`
}

// UpdateRoleRequest is the payload for updating a role.
type UpdateRoleRequest = CreateRoleRequest
