package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/model"
)

// PrincipalStore loads principals. Implemented by repository.UserRepository.
type PrincipalStore interface {
	GetPrincipalByID(ctx context.Context, id int) (model.Principal, error)
}

// RoleStore loads roles with bindings. Implemented by repository.RoleRepository.
type RoleStore interface {
	GetRoleByID(ctx context.Context, id int) (*model.Role, error)
}

// MenuStore loads the active menu tree. Implemented by repository.MenuRepository.
type MenuStore interface {
	GetActiveMenuTree(ctx context.Context) ([]model.MenuNode, error)
}

// CatalogStore reads the permission catalog. Implemented by
// repository.PermissionRepository.
type CatalogStore interface {
	ListPermissions(ctx context.Context) ([]model.PermissionRecord, error)
	IDsByName(ctx context.Context, names []string) (map[string]int, error)
}

// RoleAdminStore is the role write path.
type RoleAdminStore interface {
	RoleStore
	ListRoles(ctx context.Context) ([]*model.Role, error)
	CreateRole(ctx context.Context, role *model.Role, permissionIDs []int) error
	UpdateRole(ctx context.Context, role *model.Role, permissionIDs []int) error
	DeleteRole(ctx context.Context, id int) ([]int, error)
	AddBindings(ctx context.Context, roleID int, permissionIDs []int) (int64, error)
	UserIDsWithRole(ctx context.Context, roleID int) ([]int, error)
}

// UserStore is the user side of role assignment.
type UserStore interface {
	PrincipalStore
	GetByID(ctx context.Context, id int) (*model.User, error)
	AssignCustomRole(ctx context.Context, userID int, roleID *int) error
}

// Invalidator bumps the permission cache generation and announces the change.
// Implemented by cache.PermissionCache.
type Invalidator interface {
	InvalidateAndPublish(ctx context.Context, evt cache.Event) error
}

// invalidate runs evt through inv after a committed mutation. The mutation
// stands on failure, so the error is logged as a degraded invalidation:
// cached sets of the affected users stay readable until their TTL.
func invalidate(ctx context.Context, inv Invalidator, log zerolog.Logger, evt cache.Event) {
	if inv == nil {
		return
	}
	if err := inv.InvalidateAndPublish(ctx, evt); err != nil {
		log.Error().
			Err(err).
			Bool("degraded", true).
			Str("type", evt.Type).
			Int("role_id", evt.RoleID).
			Ints("user_ids", evt.UserIDs).
			Msg("Permission cache invalidation degraded, cached sets may be stale until TTL")
	}
}
