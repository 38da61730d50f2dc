package model

import "time"

// User is the slice of an HR user account the authorization core consumes.
type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	CustomRoleID   *int      `json:"custom_role_id,omitempty"`
	CustomRoleName string    `json:"custom_role_name,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Principal is the authenticated actor as seen by permission resolution.
// LegacyRole is kept as the raw stored string so that corrupted values reach
// the resolver instead of being coerced on load.
type Principal struct {
	UserID       int    `json:"user_id"`
	LegacyRole   string `json:"legacy_role"`
	CustomRoleID *int   `json:"custom_role_id,omitempty"`
	Active       bool   `json:"active"`
}

// Principal projects u into the resolver's input.
func (u *User) Principal() Principal {
	return Principal{
		UserID:       u.ID,
		LegacyRole:   u.Role,
		CustomRoleID: u.CustomRoleID,
		Active:       u.IsActive,
	}
}

// AssignRoleRequest sets or clears a user's custom role.
type AssignRoleRequest struct {
	RoleID *int `json:"role_id" binding:"omitempty,min=1"`
}
