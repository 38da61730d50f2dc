package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hris-authz/internal/model"
)

// RoleRepository handles role and binding data access.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

const roleColumns = `r.id, r.name, r.description, r.color, r.icon, r.is_system, r.legacy_role, r.permissions, r.created_at, r.updated_at`

func scanRole(row pgx.Row) (*model.Role, error) {
	var (
		role       model.Role
		legacyRole *string
		legacyJSON *string
	)
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Color, &role.Icon,
		&role.IsSystem, &legacyRole, &legacyJSON, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if legacyRole != nil {
		lr := model.LegacyRole(*legacyRole)
		role.LegacyRole = &lr
	}
	if legacyJSON != nil {
		role.LegacyPermissions = json.RawMessage(*legacyJSON)
	}
	return &role, nil
}

// GetRoleByID retrieves a role with its relational bindings and raw legacy JSON.
func (r *RoleRepository) GetRoleByID(ctx context.Context, id int) (*model.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles r WHERE r.id = $1`, id,
	))
	if err != nil {
		return nil, mapError(err)
	}

	bindings, err := r.GetBindings(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Bindings = bindings
	return role, nil
}

// GetBindings retrieves the role_permissions rows of a role.
func (r *RoleRepository) GetBindings(ctx context.Context, roleID int) ([]model.RoleBinding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, rp.created_at
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = $1
		 ORDER BY p.name`, roleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []model.RoleBinding
	for rows.Next() {
		var b model.RoleBinding
		if err := rows.Scan(&b.PermissionID, &b.PermissionName, &b.CreatedAt); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// ListRoles retrieves every role with its bindings using two queries.
func (r *RoleRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles r ORDER BY r.is_system DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*model.Role
	byID := make(map[int]*model.Role)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
		byID[role.ID] = role
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bindingRows, err := r.pool.Query(ctx,
		`SELECT rp.role_id, p.id, p.name, rp.created_at
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 ORDER BY rp.role_id, p.name`,
	)
	if err != nil {
		return nil, err
	}
	defer bindingRows.Close()

	for bindingRows.Next() {
		var (
			roleID int
			b      model.RoleBinding
		)
		if err := bindingRows.Scan(&roleID, &b.PermissionID, &b.PermissionName, &b.CreatedAt); err != nil {
			return nil, err
		}
		if role, ok := byID[roleID]; ok {
			role.Bindings = append(role.Bindings, b)
		}
	}
	return roles, bindingRows.Err()
}

// CreateRole inserts a custom role and its bindings in one transaction.
// role.ID and timestamps are filled in on success.
func (r *RoleRepository) CreateRole(ctx context.Context, role *model.Role, permissionIDs []int) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, description, color, icon, is_system)
			 VALUES ($1, $2, $3, $4, FALSE)
			 RETURNING id, created_at, updated_at`,
			role.Name, role.Description, role.Color, role.Icon,
		).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}

		now := time.Now()
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"role_permissions"},
			[]string{"role_id", "permission_id", "created_at"},
			pgx.CopyFromSlice(len(permissionIDs), func(i int) ([]any, error) {
				return []any{role.ID, permissionIDs[i], now}, nil
			}),
		)
		return err
	})
	return mapError(err)
}

// UpdateRole updates a role's display fields and replaces its bindings with
// permissionIDs. Bindings that survive keep their original created_at.
func (r *RoleRepository) UpdateRole(ctx context.Context, role *model.Role, permissionIDs []int) error {
	if permissionIDs == nil {
		permissionIDs = []int{}
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE roles SET name = $1, description = $2, color = $3, icon = $4, updated_at = CURRENT_TIMESTAMP
			 WHERE id = $5
			 RETURNING updated_at`,
			role.Name, role.Description, role.Color, role.Icon, role.ID,
		).Scan(&role.UpdatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		batch.Queue(
			`DELETE FROM role_permissions WHERE role_id = $1 AND NOT (permission_id = ANY($2))`,
			role.ID, permissionIDs,
		)
		batch.Queue(
			`INSERT INTO role_permissions (role_id, permission_id)
			 SELECT $1, unnest($2::int[])
			 ON CONFLICT DO NOTHING`,
			role.ID, permissionIDs,
		)
		return tx.SendBatch(ctx, batch).Close()
	})
	return mapError(err)
}

// AddBindings inserts missing bindings and leaves existing ones untouched.
// It returns the number of rows inserted.
func (r *RoleRepository) AddBindings(ctx context.Context, roleID int, permissionIDs []int) (int64, error) {
	if len(permissionIDs) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT $1, unnest($2::int[])
		 ON CONFLICT DO NOTHING`,
		roleID, permissionIDs,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteRole removes a custom role. Users referencing it lose their custom
// role; their IDs are returned so callers can notify them.
func (r *RoleRepository) DeleteRole(ctx context.Context, id int) ([]int, error) {
	var userIDs []int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`UPDATE users SET custom_role_id = NULL, updated_at = CURRENT_TIMESTAMP
			 WHERE custom_role_id = $1
			 RETURNING id`, id,
		)
		if err != nil {
			return err
		}
		userIDs, err = pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND NOT is_system`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return userIDs, nil
}

// UserIDsWithRole lists users whose custom role is roleID.
func (r *RoleRepository) UserIDsWithRole(ctx context.Context, roleID int) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE custom_role_id = $1 ORDER BY id`, roleID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
