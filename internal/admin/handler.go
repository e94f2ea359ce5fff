// Package admin serves the administrative surfaces guarded by the access gate.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-admin/internal/adminstatus"
	"github.com/odyssey-erp/odyssey-admin/internal/audit"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
)

// StatusOracle is the admin-status oracle as used by the admin surfaces.
type StatusOracle interface {
	Status(p session.Principal) adminstatus.Status
	Refresh(p session.Principal) adminstatus.Status
	RefreshUser(tenantID, userID string)
}

// Grants changes platform capabilities.
type Grants interface {
	SetLevel(ctx context.Context, tenantID, userID string, level rbac.Level, grantedBy string) error
	Revoke(ctx context.Context, tenantID, userID string) error
}

// Recorder appends audit entries for privileged actions.
type Recorder interface {
	Record(ctx context.Context, ev audit.Event) error
}

// RefreshObserver counts explicit status refreshes.
type RefreshObserver interface {
	AdminStatusRefreshed()
}

// Handler serves /admin.
type Handler struct {
	logger    *slog.Logger
	oracle    StatusOracle
	grants    Grants
	recorder  Recorder
	observer  RefreshObserver
	validator *validator.Validate
}

// NewHandler constructs the admin handler.
func NewHandler(logger *slog.Logger, oracle StatusOracle, grants Grants, recorder Recorder, observer RefreshObserver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		oracle:    oracle,
		grants:    grants,
		recorder:  recorder,
		observer:  observer,
		validator: validator.New(),
	}
}

// MountStatus registers the status endpoints. They only need a principal:
// the retry affordance must stay reachable while the oracle is failing.
func (h *Handler) MountStatus(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(requirePrincipal)
		r.Get("/status", h.showStatus)
		r.With(refreshLimit()).Post("/status/refresh", h.refreshStatus)
	})
}

func refreshLimit() func(http.Handler) http.Handler {
	return httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		p, _ := session.PrincipalFromContext(r.Context())
		return "refresh:" + p.Key(), nil
	}))
}

// MountLanding registers the admin landing page.
func (h *Handler) MountLanding(r chi.Router) {
	r.Get("/", h.landing)
}

// MountSuper registers the super-admin routes.
func (h *Handler) MountSuper(r chi.Router) {
	r.Put("/admins/{userID}", h.grant)
	r.Delete("/admins/{userID}", h.revoke)
}

func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := session.PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusView struct {
	Principal session.Principal  `json:"principal"`
	Status    adminstatus.Status `json:"status"`
}

type landingView struct {
	statusView
	Links map[string]string `json:"links"`
}

func (h *Handler) showStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := session.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, statusView{Principal: p, Status: h.oracle.Status(p)})
}

func (h *Handler) refreshStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := session.PrincipalFromContext(r.Context())
	status := h.oracle.Refresh(p)
	if h.observer != nil {
		h.observer.AdminStatusRefreshed()
	}
	h.logger.Info("admin status refresh requested", slog.String("tenant_id", p.TenantID), slog.String("user_id", p.ID))
	httpx.JSON(w, http.StatusAccepted, statusView{Principal: p, Status: status})
}

func (h *Handler) landing(w http.ResponseWriter, r *http.Request) {
	p, _ := session.PrincipalFromContext(r.Context())
	status := h.oracle.Status(p)
	links := map[string]string{
		"audit":     "/admin/audit",
		"audit_csv": "/admin/audit/export.csv",
		"users":     "/admin/users",
		"status":    "/admin/status",
		"refresh":   "/admin/status/refresh",
	}
	if status.IsSuperAdmin {
		links["admins"] = "/admin/super/admins/{userID}"
	}
	httpx.JSON(w, http.StatusOK, landingView{statusView: statusView{Principal: p, Status: status}, Links: links})
}

type grantRequest struct {
	Level string `json:"level" validate:"required,oneof=platform_admin super_admin"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	actor, target, ok := h.target(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: level must be platform_admin or super_admin", httpx.ErrValidation))
		return
	}
	level := rbac.Level(req.Level)
	if err := h.grants.SetLevel(r.Context(), actor.TenantID, target, level, actor.ID); err != nil {
		h.respondGrantError(w, err)
		return
	}
	// The grant is committed; only now is it recorded.
	h.record(r.Context(), target, audit.Details{"change": "grant", "level": string(level)})
	h.oracle.RefreshUser(actor.TenantID, target)
	httpx.JSON(w, http.StatusOK, map[string]string{"user_id": target, "level": string(level)})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, target, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.grants.Revoke(r.Context(), actor.TenantID, target); err != nil {
		h.respondGrantError(w, err)
		return
	}
	h.record(r.Context(), target, audit.Details{"change": "revoke"})
	h.oracle.RefreshUser(actor.TenantID, target)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (session.Principal, string, bool) {
	actor, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return session.Principal{}, "", false
	}
	target := strings.TrimSpace(chi.URLParam(r, "userID"))
	if target == "" {
		httpx.RespondError(w, fmt.Errorf("%w: user id required", httpx.ErrValidation))
		return session.Principal{}, "", false
	}
	if target == actor.ID {
		httpx.RespondError(w, fmt.Errorf("%w: cannot change your own admin level", httpx.ErrValidation))
		return session.Principal{}, "", false
	}
	return actor, target, true
}

func (h *Handler) record(ctx context.Context, userID string, details audit.Details) {
	err := h.recorder.Record(ctx, audit.Event{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityUser,
		EntityID:   userID,
		Details:    details,
	})
	if err != nil {
		// Only programming errors reach here; the grant itself stands.
		h.logger.Error("audit record rejected", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (h *Handler) respondGrantError(w http.ResponseWriter, err error) {
	if errors.Is(err, rbac.ErrNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrNotFound, err))
		return
	}
	h.logger.Error("admin grant change failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
