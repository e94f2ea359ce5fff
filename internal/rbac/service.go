package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-admin/internal/adminstatus"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Pool is the subset of *pgxpool.Pool the service needs.
type Pool interface {
	db.TxBeginner
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service resolves and changes platform capabilities.
type Service struct {
	pool Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool Pool) *Service {
	return &Service{pool: pool}
}

// Capabilities reports the platform capabilities of p within its tenant.
// A super-admin row implies platform admin; callers still check both flags.
func (s *Service) Capabilities(ctx context.Context, p session.Principal) (adminstatus.Capabilities, error) {
	if s == nil || s.pool == nil {
		return adminstatus.Capabilities{}, errors.New("rbac: service not configured")
	}
	var level string
	err := s.pool.QueryRow(ctx, `SELECT level FROM platform_admins WHERE tenant_id = $1 AND user_id = $2`, p.TenantID, p.ID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return adminstatus.Capabilities{}, nil
		}
		return adminstatus.Capabilities{}, fmt.Errorf("rbac: load capabilities: %w", err)
	}
	switch Level(level) {
	case LevelSuperAdmin:
		return adminstatus.Capabilities{PlatformAdmin: true, SuperAdmin: true}, nil
	case LevelPlatformAdmin:
		return adminstatus.Capabilities{PlatformAdmin: true}, nil
	default:
		return adminstatus.Capabilities{}, fmt.Errorf("rbac: unknown level %q", level)
	}
}

// SetLevel grants level to a user of tenantID, replacing any previous grant.
// The change is committed before SetLevel returns.
func (s *Service) SetLevel(ctx context.Context, tenantID, userID string, level Level, grantedBy string) error {
	if !level.Valid() {
		return fmt.Errorf("rbac: invalid level %q", level)
	}
	tenantID, userID = strings.TrimSpace(tenantID), strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return errors.New("rbac: tenant and user required")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return setLevel(ctx, tx, tenantID, userID, level, grantedBy)
	})
}

// Revoke removes any platform capability from the user. Returns ErrNotFound
// if the user held none.
func (s *Service) Revoke(ctx context.Context, tenantID, userID string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return revoke(ctx, tx, tenantID, userID)
	})
}

func setLevel(ctx context.Context, q execer, tenantID, userID string, level Level, grantedBy string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND tenant_id = $2 AND is_active)`, userID, tenantID).Scan(&exists); err != nil {
		return fmt.Errorf("rbac: check user: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	_, err := q.Exec(ctx, `INSERT INTO platform_admins (tenant_id, user_id, level, granted_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, user_id) DO UPDATE SET level = EXCLUDED.level, granted_by = EXCLUDED.granted_by`, tenantID, userID, string(level), grantedBy)
	if err != nil {
		return fmt.Errorf("rbac: set level: %w", err)
	}
	return nil
}

func revoke(ctx context.Context, q execer, tenantID, userID string) error {
	tag, err := q.Exec(ctx, `DELETE FROM platform_admins WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	if err != nil {
		return fmt.Errorf("rbac: revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ adminstatus.Resolver = (*Service)(nil)
