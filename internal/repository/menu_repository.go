package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/model"
)

// MenuRepository reads navigation entries.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository creates a new MenuRepository.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// ListActiveItems returns active menu rows with their gate resolved to a
// permission name. A gate pointing at a deleted permission reads as no gate.
func (r *MenuRepository) ListActiveItems(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.parent_id, m.name, m.icon, COALESCE(m.path, ''), m.section, m.sort_order, m.is_active,
		        COALESCE(p.name, '')
		 FROM menu_items m
		 LEFT JOIN permissions p ON p.id = m.permission_id
		 WHERE m.is_active
		 ORDER BY m.sort_order, m.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.MenuItem
	for rows.Next() {
		var it model.MenuItem
		if err := rows.Scan(&it.ID, &it.ParentID, &it.Name, &it.Icon, &it.Path, &it.Section,
			&it.SortOrder, &it.IsActive, &it.Permission); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetActiveMenuTree returns the active entries assembled into the two-level tree.
func (r *MenuRepository) GetActiveMenuTree(ctx context.Context) ([]model.MenuNode, error) {
	items, err := r.ListActiveItems(ctx)
	if err != nil {
		return nil, err
	}
	return authz.BuildMenuTree(items), nil
}
