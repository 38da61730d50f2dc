package authz

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/model"
)

// Resolution is the outcome of resolving a principal, broken down by source.
type Resolution struct {
	Set        PermissionSet
	LegacyRole model.LegacyRole
	// Floor is the enum fallback set. It is always a subset of Set.
	Floor []string
	// RoleID is the custom role that contributed, or 0 when none did.
	RoleID int
	// Bindings and LegacyJSON are the custom role's two permission sources.
	Bindings   []string
	LegacyJSON []string
	// LegacyErr is ErrMalformedLegacyPermissions when the JSON column was ignored.
	LegacyErr error
	// StrayWildcard is true when the custom role stored the wildcard as a
	// binding or in its legacy JSON. That entry is never granted.
	StrayWildcard bool
	Wildcard      bool
}

// Resolver merges the enum fallback, the relational custom role and the legacy
// JSON mirror into one effective permission set. It performs no I/O: the custom
// role must be fetched by the caller.
type Resolver struct {
	log zerolog.Logger
}

// NewResolver creates a Resolver that reports ignored legacy data to log.
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{log: log.With().Str("component", "permission_resolver").Logger()}
}

// Resolve returns the effective permission set of p. role is the custom role
// referenced by p, or nil when p has none or the reference is dangling.
func (r *Resolver) Resolve(p model.Principal, role *model.Role) (PermissionSet, error) {
	res, err := r.Explain(p, role)
	if err != nil {
		return nil, err
	}
	return res.Set, nil
}

// Explain resolves p like Resolve and keeps the per-source breakdown.
func (r *Resolver) Explain(p model.Principal, role *model.Role) (Resolution, error) {
	legacy, ok := model.ParseLegacyRole(p.LegacyRole)
	if !ok {
		return Resolution{}, &InvalidPrincipalStateError{UserID: p.UserID, Value: p.LegacyRole}
	}

	res := Resolution{
		Set:        NewPermissionSet(),
		LegacyRole: legacy,
	}

	for _, perm := range legacy.FallbackPermissions() {
		res.Floor = append(res.Floor, string(perm))
	}
	res.Set.Add(res.Floor...)

	if role = r.referencedRole(p, role); role != nil {
		res.RoleID = role.ID
		var stray bool
		res.Bindings, stray = withoutWildcard(role.BindingNames())
		res.StrayWildcard = stray
		res.Set.Add(res.Bindings...)

		names, err := role.LegacyPermissionNames()
		if err != nil {
			res.LegacyErr = err
			r.log.Warn().
				Err(err).
				Int("role_id", role.ID).
				Int("user_id", p.UserID).
				Msg("Ignoring malformed legacy permissions")
		} else {
			res.LegacyJSON, stray = withoutWildcard(names)
			res.StrayWildcard = res.StrayWildcard || stray
			res.Set.Add(res.LegacyJSON...)
		}

		if res.StrayWildcard {
			r.log.Warn().
				Int("role_id", role.ID).
				Int("user_id", p.UserID).
				Msg("Ignoring wildcard stored on a custom role")
		}
		// Only the super-admin tier grants the wildcard, never stored names.
		if role.SignalsSuperAdmin() {
			res.Set.Add(string(model.PermissionWildcard))
		}
	}

	if legacy.IsSuperAdmin() {
		res.Set.Add(string(model.PermissionWildcard))
	}
	res.Wildcard = res.Set.HasWildcard()

	return res, nil
}

// referencedRole returns role only when it is the role p actually references.
func (r *Resolver) referencedRole(p model.Principal, role *model.Role) *model.Role {
	if p.CustomRoleID == nil || role == nil {
		return nil
	}
	if role.ID != *p.CustomRoleID {
		r.log.Warn().
			Int("user_id", p.UserID).
			Int("expected_role_id", *p.CustomRoleID).
			Int("got_role_id", role.ID).
			Msg("Ignoring role that the principal does not reference")
		return nil
	}
	return role
}

// withoutWildcard returns names minus the wildcard and whether it was present.
func withoutWildcard(names []string) ([]string, bool) {
	if names == nil {
		return nil, false
	}
	out := make([]string, 0, len(names))
	found := false
	for _, n := range names {
		if n == string(model.PermissionWildcard) {
			found = true
			continue
		}
		out = append(out, n)
	}
	return out, found
}

// IsLegacyMalformed reports whether err came from an ignored legacy JSON column.
func IsLegacyMalformed(err error) bool {
	return errors.Is(err, model.ErrMalformedLegacyPermissions)
}
