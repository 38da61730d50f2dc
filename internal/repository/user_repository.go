package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/hris-authz/internal/model"
)

// UserRepository reads the authorization-relevant columns of users.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetPrincipalByID loads the principal for a user. The enum column is returned
// verbatim; validating it is the resolver's job.
func (r *UserRepository) GetPrincipalByID(ctx context.Context, id int) (model.Principal, error) {
	p := model.Principal{UserID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT role, custom_role_id, is_active FROM users WHERE id = $1`, id,
	).Scan(&p.LegacyRole, &p.CustomRoleID, &p.Active)
	if err != nil {
		return model.Principal{}, mapError(err)
	}
	return p, nil
}

// GetByID retrieves a user with the name of their custom role, if any.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*model.User, error) {
	u := &model.User{}
	var roleName *string
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.name, u.role, u.custom_role_id, r.name, u.is_active, u.created_at, u.updated_at
		 FROM users u LEFT JOIN roles r ON r.id = u.custom_role_id
		 WHERE u.id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CustomRoleID, &roleName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if roleName != nil {
		u.CustomRoleName = *roleName
	}
	return u, nil
}

// AssignCustomRole sets or, with a nil roleID, clears a user's custom role.
func (r *UserRepository) AssignCustomRole(ctx context.Context, userID int, roleID *int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET custom_role_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		roleID, userID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
