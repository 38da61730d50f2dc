package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/repository"
)

// RoleService handles business logic for roles and their bindings.
type RoleService struct {
	roles       RoleAdminStore
	catalog     CatalogStore
	invalidator Invalidator
	log         zerolog.Logger
}

// NewRoleService creates a new RoleService. invalidator may be nil.
func NewRoleService(roles RoleAdminStore, catalog CatalogStore, invalidator Invalidator, log zerolog.Logger) *RoleService {
	return &RoleService{
		roles:       roles,
		catalog:     catalog,
		invalidator: invalidator,
		log:         log.With().Str("component", "role_service").Logger(),
	}
}

// ListRoles retrieves all roles with their permissions.
func (s *RoleService) ListRoles(ctx context.Context) ([]model.RoleWithPermissions, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RoleWithPermissions, 0, len(roles))
	for _, r := range roles {
		out = append(out, model.NewRoleWithPermissions(r))
	}
	return out, nil
}

// GetRole retrieves a role and its permissions.
func (s *RoleService) GetRole(ctx context.Context, id int) (*model.RoleWithPermissions, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}
	view := model.NewRoleWithPermissions(role)
	return &view, nil
}

// CreateRole creates a custom role bound to req.Permissions.
func (s *RoleService) CreateRole(ctx context.Context, req model.CreateRoleRequest) (*model.RoleWithPermissions, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrRoleNameRequired
	}

	ids, err := s.permissionIDs(ctx, req.Permissions)
	if err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Color:       req.Color,
		Icon:        req.Icon,
	}
	if err := s.roles.CreateRole(ctx, role, ids); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRoleNameTaken
		}
		return nil, err
	}

	s.log.Info().Int("role_id", role.ID).Str("name", role.Name).Int("permissions", len(ids)).Msg("Role created")
	s.notify(ctx, cache.Event{Type: cache.EventRoleChanged, RoleID: role.ID})
	return s.GetRole(ctx, role.ID)
}

// UpdateRole replaces a role's display fields and bindings. System roles keep
// their name and every enum fallback permission.
func (s *RoleService) UpdateRole(ctx context.Context, id int, req model.UpdateRoleRequest) (*model.RoleWithPermissions, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrRoleNameRequired
	}

	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		if err := checkSystemRoleUpdate(role, name, req.Permissions); err != nil {
			return nil, err
		}
	}

	ids, err := s.permissionIDs(ctx, req.Permissions)
	if err != nil {
		return nil, err
	}

	role.Name = name
	role.Description = strings.TrimSpace(req.Description)
	role.Color = req.Color
	role.Icon = req.Icon
	if err := s.roles.UpdateRole(ctx, role, ids); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrRoleNameTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRoleNotFound
		}
		return nil, err
	}

	s.log.Info().Int("role_id", id).Int("permissions", len(ids)).Msg("Role updated")
	s.notify(ctx, cache.Event{Type: cache.EventRoleChanged, RoleID: id, UserIDs: s.holders(ctx, id)})
	return s.GetRole(ctx, id)
}

// SetBindings replaces only the bindings of a role.
func (s *RoleService) SetBindings(ctx context.Context, id int, permissions []string) (*model.RoleWithPermissions, error) {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.UpdateRole(ctx, id, model.UpdateRoleRequest{
		Name:        role.Name,
		Description: role.Description,
		Color:       role.Color,
		Icon:        role.Icon,
		Permissions: permissions,
	})
}

// DeleteRole deletes a custom role. Users holding it fall back to their enum.
func (s *RoleService) DeleteRole(ctx context.Context, id int) error {
	role, err := s.getRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return &SystemRoleError{RoleID: id, Reason: "system roles cannot be deleted"}
	}

	userIDs, err := s.roles.DeleteRole(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRoleNotFound
	}
	if err != nil {
		return err
	}

	s.log.Info().Int("role_id", id).Int("orphaned_users", len(userIDs)).Msg("Role deleted")
	s.notify(ctx, cache.Event{Type: cache.EventRoleDeleted, RoleID: id, UserIDs: userIDs})
	return nil
}

// SyncResult reports what SyncSystemRoles did for one system role.
type SyncResult struct {
	RoleID   int
	RoleName string
	Added    int64
	// Missing lists fallback names absent from the catalog.
	Missing []string
}

// SyncSystemRoles adds every enum fallback permission that a system role lacks
// as a relational binding. It never removes bindings.
func (s *RoleService) SyncSystemRoles(ctx context.Context) ([]SyncResult, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results []SyncResult
		total   int64
	)
	for _, role := range roles {
		if !role.IsSystem || role.LegacyRole == nil {
			continue
		}

		names := floorNames(*role.LegacyRole)
		idByName, err := s.catalog.IDsByName(ctx, names)
		if err != nil {
			return results, err
		}

		res := SyncResult{RoleID: role.ID, RoleName: role.Name}
		ids := make([]int, 0, len(names))
		for _, n := range names {
			if id, ok := idByName[n]; ok {
				ids = append(ids, id)
			} else {
				res.Missing = append(res.Missing, n)
			}
		}

		res.Added, err = s.roles.AddBindings(ctx, role.ID, ids)
		if err != nil {
			return results, fmt.Errorf("sync role %d: %w", role.ID, err)
		}
		total += res.Added
		results = append(results, res)
	}

	if total > 0 {
		s.notify(ctx, cache.Event{Type: cache.EventRoleChanged})
	}
	return results, nil
}

// DriftReport compares bindings with the legacy JSON mirror of every role.
func (s *RoleService) DriftReport(ctx context.Context) ([]authz.RoleDrift, error) {
	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]authz.RoleDrift, 0, len(roles))
	for _, r := range roles {
		out = append(out, authz.DiffRole(r))
	}
	return out, nil
}

func (s *RoleService) getRole(ctx context.Context, id int) (*model.Role, error) {
	role, err := s.roles.GetRoleByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	return role, err
}

// permissionIDs resolves names against the catalog. Duplicates are collapsed
// and any unknown name fails the whole request.
func (s *RoleService) permissionIDs(ctx context.Context, names []string) ([]int, error) {
	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	idByName, err := s.catalog.IDsByName(ctx, unique)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(unique))
	var unknown []string
	for _, n := range unique {
		id, ok := idByName[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		ids = append(ids, id)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownPermissionsError{Names: unknown}
	}
	return ids, nil
}

func (s *RoleService) holders(ctx context.Context, roleID int) []int {
	ids, err := s.roles.UserIDsWithRole(ctx, roleID)
	if err != nil {
		s.log.Warn().Err(err).Int("role_id", roleID).Msg("Failed to list role holders")
		return nil
	}
	return ids
}

func (s *RoleService) notify(ctx context.Context, evt cache.Event) {
	invalidate(ctx, s.invalidator, s.log, evt)
}

func checkSystemRoleUpdate(role *model.Role, name string, permissions []string) error {
	if name != role.Name {
		return &SystemRoleError{RoleID: role.ID, Reason: "system role names cannot change"}
	}
	if role.LegacyRole == nil {
		return nil
	}

	requested := authz.NewPermissionSet(permissions...)
	var removed []string
	for _, n := range floorNames(*role.LegacyRole) {
		if !requested.Has(n) {
			removed = append(removed, n)
		}
	}
	if len(removed) > 0 {
		return &SystemRoleError{RoleID: role.ID, Reason: "enum fallback permissions cannot be removed", Names: removed}
	}
	return nil
}

// floorNames returns the bindable fallback names of r, without the wildcard.
func floorNames(r model.LegacyRole) []string {
	perms := r.FallbackPermissions()
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		if p != model.PermissionWildcard {
			names = append(names, string(p))
		}
	}
	return names
}
