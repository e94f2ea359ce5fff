package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Querier is the subset of pgxpool.Pool used by Repository.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db Querier
}

// NewRepository constructs a repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// Profile loads the active user behind a session. Inactive or unknown users
// yield shared.ErrNotFound.
func (r *Repository) Profile(ctx context.Context, userID string) (session.Profile, error) {
	var p session.Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, name, tenant_id FROM users WHERE id = $1 AND is_active`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.TenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Profile{}, shared.ErrNotFound
	}
	if err != nil {
		return session.Profile{}, fmt.Errorf("users: load profile: %w", err)
	}
	return p, nil
}

// ListByTenant returns the members of tenantID with their admin level.
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]User, error) {
	if tenantID == "" {
		return nil, shared.ErrMissingTenantScope
	}
	rows, err := r.db.Query(ctx, `SELECT u.id, u.tenant_id, u.email, u.name, u.is_active, pa.level, u.created_at
FROM users u
LEFT JOIN platform_admins pa ON pa.tenant_id = u.tenant_id AND pa.user_id = u.id
WHERE u.tenant_id = $1
ORDER BY u.name, u.id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var (
			u       User
			level   pgtype.Text
			created pgtype.Timestamptz
		)
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.IsActive, &level, &created); err != nil {
			return nil, err
		}
		u.AdminLevel = level.String
		u.CreatedAt = created.Time
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

var _ session.ProfileStore = (*Repository)(nil)
