// Package gate decides, per request, whether a principal may reach an
// administrative route.
package gate

import (
	"strings"

	"github.com/odyssey-erp/odyssey-admin/internal/adminstatus"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
)

// Requirement is the capability a route demands.
type Requirement int

const (
	// RequireNone only demands an authenticated principal.
	RequireNone Requirement = iota
	// RequirePlatformAdmin demands the platform-admin capability.
	RequirePlatformAdmin
	// RequireSuperAdmin demands both platform-admin and super-admin.
	RequireSuperAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequirePlatformAdmin:
		return "platform_admin"
	case RequireSuperAdmin:
		return "super_admin"
	default:
		return "none"
	}
}

// Kind enumerates gate outcomes.
type Kind int

const (
	KindRender Kind = iota
	KindLoading
	KindError
	KindRedirect
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindError:
		return "error"
	case KindRedirect:
		return "redirect"
	default:
		return "render"
	}
}

// Reason explains a redirect.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonSignIn sends an anonymous visitor to sign in.
	ReasonSignIn
	// ReasonNotAdmin sends an authenticated non-admin to the default landing page.
	ReasonNotAdmin
	// ReasonNotSuperAdmin downgrades a platform admin to the admin landing page.
	ReasonNotSuperAdmin
)

// Paths configures redirect destinations.
type Paths struct {
	SignIn  string
	Landing string
	Admin   string
}

// DefaultPaths are used for empty fields of Paths.
var DefaultPaths = Paths{SignIn: "/auth/login", Landing: "/", Admin: "/admin"}

func (p Paths) withDefaults() Paths {
	if strings.TrimSpace(p.SignIn) == "" {
		p.SignIn = DefaultPaths.SignIn
	}
	if strings.TrimSpace(p.Landing) == "" {
		p.Landing = DefaultPaths.Landing
	}
	if strings.TrimSpace(p.Admin) == "" {
		p.Admin = DefaultPaths.Admin
	}
	return p
}

// Input is everything one evaluation depends on.
type Input struct {
	SessionLoading bool
	Principal      *session.Principal
	Status         adminstatus.Status
	Requirement    Requirement
	// Location is the originally requested location.
	Location string
}

// Outcome is the single result of an evaluation.
type Outcome struct {
	Kind   Kind
	Reason Reason
	// Target is the redirect destination.
	Target string
	// From carries the originally requested location on sign-in redirects.
	From string
	// Error is the oracle failure shown with a retry affordance.
	Error string
}

// Decide evaluates the gate. The order of the checks matters: pending input
// must never produce a redirect, an oracle failure must never look like a
// signed-out visitor, and the two privilege checks lead to different places.
func Decide(in Input, paths Paths) Outcome {
	paths = paths.withDefaults()
	switch {
	case in.SessionLoading || in.Status.IsLoading:
		return Outcome{Kind: KindLoading}
	case in.Status.LastError != "":
		return Outcome{Kind: KindError, Error: in.Status.LastError}
	case in.Principal == nil:
		return Outcome{Kind: KindRedirect, Reason: ReasonSignIn, Target: paths.SignIn, From: in.Location}
	case in.Requirement == RequireNone:
		return Outcome{Kind: KindRender}
	case !in.Status.IsPlatformAdmin:
		return Outcome{Kind: KindRedirect, Reason: ReasonNotAdmin, Target: paths.Landing}
	case in.Requirement == RequireSuperAdmin && !in.Status.IsSuperAdmin:
		return Outcome{Kind: KindRedirect, Reason: ReasonNotSuperAdmin, Target: paths.Admin}
	default:
		return Outcome{Kind: KindRender}
	}
}
