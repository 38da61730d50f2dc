package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hris-authz/internal/model"
)

// PermissionRepository reads the permission catalog.
type PermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

// ListPermissions returns every catalog entry ordered by sort_order, then name.
// An empty catalog yields an empty slice.
func (r *PermissionRepository) ListPermissions(ctx context.Context) ([]model.PermissionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, label, description, group_name, group_icon, sort_order
		 FROM permissions
		 ORDER BY sort_order, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.PermissionRecord{}
	for rows.Next() {
		var p model.PermissionRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Label, &p.Description, &p.GroupName, &p.GroupIcon, &p.SortOrder); err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// IDsByName maps the given names to permission IDs. Names missing from the
// catalog are absent from the result.
func (r *PermissionRepository) IDsByName(ctx context.Context, names []string) (map[string]int, error) {
	ids := make(map[string]int, len(names))
	if len(names) == 0 {
		return ids, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM permissions WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}
