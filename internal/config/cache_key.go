package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PermissionGenerationKey is the counter that versions every cached
// permission set. Bumping it invalidates all of them at once.
func (r *CacheKeyStruct) PermissionGenerationKey() string {
	return "authz:perms:generation"
}

// UserPermissionsKey returns the cache key for a user's effective permissions
// under a given generation.
func (r *CacheKeyStruct) UserPermissionsKey(generation int64, userID int) string {
	return fmt.Sprintf("authz:perms:g%d:user:%d", generation, userID)
}

var CacheKey = NewCacheKeyStruct()
