package users

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListByTenant(ctx context.Context, tenantID string) ([]User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns the members of the session tenant.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("users: %w", shared.ErrUnauthenticated)
	}
	if p.TenantID == "" {
		return nil, fmt.Errorf("users: %w", shared.ErrMissingTenantScope)
	}
	return s.repo.ListByTenant(ctx, p.TenantID)
}
