package authz

import (
	"sort"

	"github.com/stemsi/hris-authz/internal/model"
)

// PermissionSet is an effective permission set: de-duplicated permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from names, skipping empty strings.
func NewPermissionSet(names ...string) PermissionSet {
	s := make(PermissionSet, len(names))
	s.Add(names...)
	return s
}

// Add inserts names into s.
func (s PermissionSet) Add(names ...string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
}

// Has reports whether name is literally present. It does not apply the wildcard.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasWildcard reports whether s grants everything.
func (s PermissionSet) HasWildcard() bool {
	return s.Has(string(model.PermissionWildcard))
}

// Contains reports whether every name in other is present in s.
func (s PermissionSet) Contains(other PermissionSet) bool {
	for n := range other {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Sorted returns the names in lexical order.
func (s PermissionSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of s.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}
