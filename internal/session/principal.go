// Package session resolves the authenticated principal for a request. It is
// the only source of the actor and tenant identifiers used by the admin gate
// and the audit recorder.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Principal identifies the authenticated actor. It is immutable for the
// lifetime of a session.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	TenantID    string `json:"tenant_id"`
}

// Key identifies the principal within its tenant.
func (p Principal) Key() string {
	return p.TenantID + "/" + p.ID
}

// Snapshot is the session oracle state consumed by one gate evaluation.
type Snapshot struct {
	Loading   bool
	Principal *Principal
}

// Profile is the tenant-scoped user record backing a principal.
type Profile struct {
	UserID      string
	DisplayName string
	TenantID    string
}

// ProfileStore loads user profiles.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// Resolver turns the cookie session into a Snapshot.
type Resolver struct {
	profiles ProfileStore
	logger   *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(profiles ProfileStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: profiles, logger: logger}
}

// Resolve builds the snapshot for the session. A session without a user, or
// whose user no longer has an active profile in the session's tenant, yields
// a snapshot without principal.
func (r *Resolver) Resolve(ctx context.Context, sess *shared.Session) (Snapshot, error) {
	if sess == nil {
		return Snapshot{}, nil
	}
	userID := strings.TrimSpace(sess.User())
	if userID == "" {
		return Snapshot{}, nil
	}
	profile, err := r.profiles.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	tenantID := strings.TrimSpace(sess.Tenant())
	if tenantID == "" {
		tenantID = profile.TenantID
	}
	if tenantID != profile.TenantID {
		r.logger.Warn("session tenant does not match profile", slog.String("user_id", userID))
		return Snapshot{}, nil
	}
	return Snapshot{Principal: &Principal{
		ID:          profile.UserID,
		DisplayName: profile.DisplayName,
		TenantID:    tenantID,
	}}, nil
}

// Middleware resolves the snapshot once per request and stores it in the
// request context. Downstream components never cache it beyond the request.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		snap, err := r.Resolve(req.Context(), shared.SessionFromContext(req.Context()))
		if err != nil {
			r.logger.Error("resolve principal", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithSnapshot(req.Context(), snap)))
	})
}
