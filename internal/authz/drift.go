package authz

import (
	"sort"

	"github.com/stemsi/hris-authz/internal/model"
)

// RoleDrift compares a role's relational bindings with its legacy JSON mirror.
type RoleDrift struct {
	RoleID   int    `json:"role_id"`
	RoleName string `json:"role_name"`
	IsSystem bool   `json:"is_system"`
	// HasLegacy is false when the JSON column is absent.
	HasLegacy       bool `json:"has_legacy"`
	LegacyMalformed bool `json:"legacy_malformed"`
	// StoredWildcard is true when a binding or the legacy JSON holds the
	// wildcard. Resolution ignores it.
	StoredWildcard bool     `json:"stored_wildcard"`
	OnlyInLegacy   []string `json:"only_in_legacy,omitempty"`
	OnlyInBindings []string `json:"only_in_bindings,omitempty"`
	// MissingFloor lists enum fallback names a system role lacks as bindings.
	// The floor still applies at resolution time.
	MissingFloor []string `json:"missing_floor,omitempty"`
}

// Drifted reports whether the two sources disagree.
func (d RoleDrift) Drifted() bool {
	return d.LegacyMalformed || d.StoredWildcard || len(d.OnlyInLegacy) > 0 || len(d.OnlyInBindings) > 0 || len(d.MissingFloor) > 0
}

// DiffRole reports drift for role. It only reads; nothing is reconciled.
// Bindings without a legacy mirror are not drift.
func DiffRole(role *model.Role) RoleDrift {
	d := RoleDrift{RoleID: role.ID, RoleName: role.Name, IsSystem: role.IsSystem}
	bound, stray := withoutWildcard(role.BindingNames())
	d.StoredWildcard = stray
	bindings := NewPermissionSet(bound...)

	legacy, err := role.LegacyPermissionNames()
	switch {
	case err != nil:
		d.HasLegacy = true
		d.LegacyMalformed = true
	case legacy != nil:
		d.HasLegacy = true
		legacy, stray = withoutWildcard(legacy)
		d.StoredWildcard = d.StoredWildcard || stray
		legacySet := NewPermissionSet(legacy...)
		d.OnlyInLegacy = difference(legacySet, bindings)
		d.OnlyInBindings = difference(bindings, legacySet)
	}

	if role.IsSystem && role.LegacyRole != nil {
		floor := NewPermissionSet()
		for _, p := range role.LegacyRole.FallbackPermissions() {
			if p != model.PermissionWildcard {
				floor.Add(string(p))
			}
		}
		d.MissingFloor = difference(floor, bindings)
	}
	return d
}

// difference returns the sorted names in a but not in b.
func difference(a, b PermissionSet) []string {
	var out []string
	for name := range a {
		if !b.Has(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
