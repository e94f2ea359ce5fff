package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// NextParam carries the location to return to after sign-in.
const NextParam = "next"

// StatusForgetter drops cached admin status for a principal that signs in or
// out.
type StatusForgetter interface {
	Forget(p session.Principal)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	status         StatusForgetter
	landing        string
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. landing is the fallback
// destination when no safe next location was requested.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, status StatusForgetter, landing string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if landing == "" {
		landing = "/"
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		status:         status,
		landing:        landing,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Next     string `json:"next"`
}

type loginPage struct {
	Next          string `json:"next"`
	Authenticated bool   `json:"authenticated"`
}

type loginResult struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Redirect string `json:"redirect"`
}

type validationProblem struct {
	httpx.ProblemDetail
	Errors map[string]string `json:"errors,omitempty"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	_, authenticated := session.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, loginPage{
		Next:          SafeNext(r.URL.Query().Get(NextParam), h.landing),
		Authenticated: authenticated,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if form.Next == "" {
		form.Next = r.URL.Query().Get(NextParam)
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
			}
		}
	}
	if len(errs) > 0 {
		httpx.JSON(w, http.StatusBadRequest, validationProblem{
			ProblemDetail: httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest},
			Errors:        errs,
		})
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		h.logger.Info("sign-in rejected", slog.String("email", form.Email))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(user.ID, user.TenantID)
	if h.status != nil {
		// A fresh sign-in always resolves capabilities again.
		h.status.Forget(session.Principal{ID: user.ID, TenantID: user.TenantID})
	}
	h.logger.Info("signed in", slog.String("user_id", user.ID), slog.String("tenant_id", user.TenantID))
	httpx.JSON(w, http.StatusOK, loginResult{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Name:     user.Name,
		Redirect: SafeNext(form.Next, h.landing),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if p, ok := session.PrincipalFromContext(r.Context()); ok && h.status != nil {
		h.status.Forget(p)
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, h.landing, http.StatusSeeOther)
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
// Scheme-relative and backslash tricks are rejected so that sign-in can never
// bounce the user to another origin.
func SafeNext(next, fallback string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return next
}
