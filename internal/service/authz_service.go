package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/metrics"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Effective is a principal together with its resolved permission set.
type Effective struct {
	Principal model.Principal
	Set       authz.PermissionSet
	// Cached is true when Set came from the cross-request cache.
	Cached bool
}

// AuthzService wires the pure resolver to the stores and the cache.
type AuthzService struct {
	principals PrincipalStore
	roles      RoleStore
	menus      MenuStore
	resolver   *authz.Resolver
	cache      *cache.PermissionCache
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewAuthzService creates a new AuthzService. permCache and m may be nil.
func NewAuthzService(
	principals PrincipalStore,
	roles RoleStore,
	menus MenuStore,
	permCache *cache.PermissionCache,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthzService {
	return &AuthzService{
		principals: principals,
		roles:      roles,
		menus:      menus,
		resolver:   authz.NewResolver(log),
		cache:      permCache,
		metrics:    m,
		log:        log.With().Str("component", "authz_service").Logger(),
	}
}

// EffectivePermissions loads userID and resolves its effective permission
// set. ErrUserNotFound is returned for unknown users and an
// *authz.InvalidPrincipalStateError for an unrecognized enum value.
func (s *AuthzService) EffectivePermissions(ctx context.Context, userID int) (*Effective, error) {
	var (
		p      model.Principal
		gen    int64
		genErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.loadPrincipal(gctx, userID)
		return err
	})
	if s.cache.Enabled() {
		g.Go(func() error {
			gen, genErr = s.cache.Generation(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if _, ok := model.ParseLegacyRole(p.LegacyRole); !ok {
		err := &authz.InvalidPrincipalStateError{UserID: p.UserID, Value: p.LegacyRole}
		s.log.Error().Err(err).Int("user_id", p.UserID).Msg("Unrecognized legacy role")
		return nil, err
	}

	useCache := s.cache.Enabled() && genErr == nil
	if s.cache.Enabled() && genErr != nil {
		s.metrics.ObserveCache(metrics.CacheError)
		s.log.Warn().Err(genErr).Msg("Permission cache unavailable, resolving fresh")
	}

	if useCache {
		entry, ok, err := s.cache.Get(ctx, gen, userID)
		switch {
		case err != nil:
			s.metrics.ObserveCache(metrics.CacheError)
			s.log.Warn().Err(err).Int("user_id", userID).Msg("Permission cache read failed")
		case ok && entry.Matches(p.LegacyRole, p.CustomRoleID):
			s.metrics.ObserveCache(metrics.CacheHit)
			return &Effective{Principal: p, Set: authz.NewPermissionSet(entry.Permissions...), Cached: true}, nil
		default:
			s.metrics.ObserveCache(metrics.CacheMiss)
		}
	}

	// Every request resolves on its own ctx against current store state.
	set, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	if useCache {
		entry := cache.Entry{LegacyRole: p.LegacyRole, CustomRoleID: p.CustomRoleID, Permissions: set.Sorted()}
		if err := s.cache.Set(ctx, gen, userID, entry); err != nil {
			s.log.Warn().Err(err).Int("user_id", userID).Msg("Permission cache write failed")
		}
	}

	return &Effective{Principal: p, Set: set}, nil
}

// Explain resolves userID without the cache and returns the per-source breakdown.
func (s *AuthzService) Explain(ctx context.Context, userID int) (model.Principal, authz.Resolution, error) {
	p, err := s.loadPrincipal(ctx, userID)
	if err != nil {
		return model.Principal{}, authz.Resolution{}, err
	}
	role, err := s.loadRole(ctx, p)
	if err != nil {
		return p, authz.Resolution{}, err
	}
	res, err := s.resolver.Explain(p, role)
	return p, res, err
}

// Simulate resolves a hypothetical principal. roleID may be nil.
func (s *AuthzService) Simulate(ctx context.Context, legacyRole string, roleID *int) (authz.Resolution, error) {
	p := model.Principal{LegacyRole: legacyRole, CustomRoleID: roleID, Active: true}
	role, err := s.loadRole(ctx, p)
	if err != nil {
		return authz.Resolution{}, err
	}
	return s.resolver.Explain(p, role)
}

// Authorize resolves userID and checks required.
func (s *AuthzService) Authorize(ctx context.Context, userID int, required string) (authz.Decision, *Effective, error) {
	eff, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return authz.Decision{}, nil, err
	}
	d := authz.Authorize(eff.Set, required)
	s.metrics.ObserveDecision(d.Allowed)
	return d, eff, nil
}

// RecordDecision counts a decision made outside Authorize.
func (s *AuthzService) RecordDecision(d authz.Decision) {
	s.metrics.ObserveDecision(d.Allowed)
}

// Menu returns the active menu pruned for set and grouped by section.
func (s *AuthzService) Menu(ctx context.Context, set authz.PermissionSet) ([]model.MenuSection, error) {
	tree, err := s.menus.GetActiveMenuTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu tree: %w", err)
	}
	return authz.FilterForPrincipal(tree, set), nil
}

// MenuTree returns the unfiltered active tree.
func (s *AuthzService) MenuTree(ctx context.Context) ([]model.MenuNode, error) {
	tree, err := s.menus.GetActiveMenuTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu tree: %w", err)
	}
	if tree == nil {
		tree = []model.MenuNode{}
	}
	return tree, nil
}

func (s *AuthzService) resolve(ctx context.Context, p model.Principal) (authz.PermissionSet, error) {
	start := time.Now()

	role, err := s.loadRole(ctx, p)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Explain(p, role)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveResolve(time.Since(start), res.LegacyErr != nil)
	return res.Set, nil
}

func (s *AuthzService) loadPrincipal(ctx context.Context, userID int) (model.Principal, error) {
	p, err := s.principals.GetPrincipalByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, ErrUserNotFound
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("load principal %d: %w", userID, err)
	}
	return p, nil
}

// loadRole fetches the custom role p references. A dangling reference yields
// nil so that resolution falls back to the enum floor.
func (s *AuthzService) loadRole(ctx context.Context, p model.Principal) (*model.Role, error) {
	if p.CustomRoleID == nil {
		return nil, nil
	}
	role, err := s.roles.GetRoleByID(ctx, *p.CustomRoleID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug().
			Int("user_id", p.UserID).
			Int("role_id", *p.CustomRoleID).
			Msg("Dangling custom role reference")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load role %d: %w", *p.CustomRoleID, err)
	}
	return role, nil
}
