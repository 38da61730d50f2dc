package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/model"
)

const catalogCacheKey = "catalog"

// CatalogService serves the permission catalog from a short-lived in-process
// cache. The catalog is static reference data.
type CatalogService struct {
	store CatalogStore
	lru   *expirable.LRU[string, []model.PermissionRecord]
	log   zerolog.Logger
}

// NewCatalogService creates a new CatalogService. A non-positive ttl disables
// caching.
func NewCatalogService(store CatalogStore, ttl time.Duration, log zerolog.Logger) *CatalogService {
	s := &CatalogService{
		store: store,
		log:   log.With().Str("component", "catalog_service").Logger(),
	}
	if ttl > 0 {
		s.lru = expirable.NewLRU[string, []model.PermissionRecord](1, nil, ttl)
	}
	return s
}

// List returns every permission ordered by sort_order, then name. An empty
// catalog is an empty slice.
func (s *CatalogService) List(ctx context.Context) ([]model.PermissionRecord, error) {
	if s.lru != nil {
		if records, ok := s.lru.Get(catalogCacheKey); ok {
			return records, nil
		}
	}

	records, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	records = authz.SortCatalog(records)

	if s.lru != nil {
		s.lru.Add(catalogCacheKey, records)
	}
	return records, nil
}

// Grouped returns the catalog grouped for display.
func (s *CatalogService) Grouped(ctx context.Context) ([]model.PermissionGroup, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	groups := authz.GroupCatalog(records)
	if groups == nil {
		groups = []model.PermissionGroup{}
	}
	return groups, nil
}

// Purge drops the cached catalog.
func (s *CatalogService) Purge() {
	if s.lru != nil {
		s.lru.Purge()
		s.log.Debug().Msg("Catalog cache purged")
	}
}
