package authz

import (
	"github.com/stemsi/hris-authz/internal/model"
)

// Decision is the result of Authorize.
type Decision struct {
	Allowed bool
	// Missing names the required permission when the decision is a denial.
	Missing string
}

// Err returns nil for an allow and a *PermissionMissingError for a denial.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &PermissionMissingError{Permission: d.Missing}
}

// Allow is the decision for unguarded or satisfied checks.
var Allow = Decision{Allowed: true}

// Deny builds the decision for a missing permission.
func Deny(required string) Decision {
	return Decision{Missing: required}
}

// Authorize decides whether set satisfies required. Only the empty string
// means the operation is unguarded; any other name, including whitespace,
// must match a member exactly. The wildcard satisfies any permission,
// including names that are not in the catalog.
func Authorize(set PermissionSet, required string) Decision {
	if required == "" {
		return Allow
	}
	if set.HasWildcard() || set.Has(required) {
		return Allow
	}
	return Deny(required)
}

// AuthorizeAny allows when at least one of required is satisfied. No required
// permissions means unguarded. A denial reports the first required name.
func AuthorizeAny(set PermissionSet, required ...string) Decision {
	var first string
	for _, r := range required {
		if r == "" {
			continue
		}
		if first == "" {
			first = r
		}
		if d := Authorize(set, r); d.Allowed {
			return d
		}
	}
	if first == "" {
		return Allow
	}
	return Deny(first)
}

// AuthorizePermission is Authorize for typed permission codes.
func AuthorizePermission(set PermissionSet, required model.Permission) Decision {
	return Authorize(set, string(required))
}
