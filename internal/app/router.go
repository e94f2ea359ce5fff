package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-admin/internal/admin"
	audithttp "github.com/odyssey-erp/odyssey-admin/internal/audit/http"
	"github.com/odyssey-erp/odyssey-admin/internal/auth"
	"github.com/odyssey-erp/odyssey-admin/internal/gate"
	"github.com/odyssey-erp/odyssey-admin/internal/observability"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
	"github.com/odyssey-erp/odyssey-admin/internal/users"
	"github.com/odyssey-erp/odyssey-admin/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Principals     *session.Resolver
	Gate           *gate.Gate
	AuthHandler    *auth.Handler
	AdminHandler   *admin.Handler
	AuditHandler   *audithttp.Handler
	UsersHandler   *users.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Principals:     params.Principals,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	paths := params.Config.GatePaths()

	// Default landing page: any signed-in principal.
	r.With(params.Gate.Require(gate.RequireNone)).Get(paths.Landing, func(w http.ResponseWriter, r *http.Request) {
		p, _ := session.PrincipalFromContext(r.Context())
		httpx.JSON(w, http.StatusOK, map[string]any{"principal": p})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route(paths.Admin, func(r chi.Router) {
		params.AdminHandler.MountStatus(r)

		r.Group(func(r chi.Router) {
			r.Use(params.Gate.Require(gate.RequirePlatformAdmin))
			params.AdminHandler.MountLanding(r)
			params.AuditHandler.MountRoutes(r)
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
		})

		r.Route("/super", func(r chi.Router) {
			r.Use(params.Gate.Require(gate.RequireSuperAdmin))
			params.AdminHandler.MountSuper(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.Gate.Require(gate.RequirePlatformAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
