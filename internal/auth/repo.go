package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// RowQuerier is satisfied by pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db RowQuerier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db RowQuerier) *PGRepository {
	return &PGRepository{db: db}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		user    User
		created pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, name, password_hash, is_active, created_at FROM users WHERE lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&user.ID, &user.TenantID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive, &created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = created.Time
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
