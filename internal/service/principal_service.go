package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/repository"
)

// PrincipalService manages which custom role a user holds.
type PrincipalService struct {
	users       UserStore
	roles       RoleStore
	invalidator Invalidator
	log         zerolog.Logger
}

// NewPrincipalService creates a new PrincipalService. invalidator may be nil.
func NewPrincipalService(users UserStore, roles RoleStore, invalidator Invalidator, log zerolog.Logger) *PrincipalService {
	return &PrincipalService{
		users:       users,
		roles:       roles,
		invalidator: invalidator,
		log:         log.With().Str("component", "principal_service").Logger(),
	}
}

// GetUser retrieves a user with their custom role name.
func (s *PrincipalService) GetUser(ctx context.Context, id int) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// AssignCustomRole sets userID's custom role, or clears it when roleID is nil.
// The legacy enum is never touched.
func (s *PrincipalService) AssignCustomRole(ctx context.Context, userID int, roleID *int) (*model.User, error) {
	if roleID != nil {
		if _, err := s.roles.GetRoleByID(ctx, *roleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRoleNotFound
			}
			return nil, err
		}
	}

	if err := s.users.AssignCustomRole(ctx, userID, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	evt := cache.Event{Type: cache.EventRoleAssigned, UserIDs: []int{userID}}
	if roleID != nil {
		evt.RoleID = *roleID
	}
	invalidate(ctx, s.invalidator, s.log, evt)

	s.log.Info().Int("user_id", userID).Interface("role_id", roleID).Msg("Custom role assigned")
	return s.GetUser(ctx, userID)
}
