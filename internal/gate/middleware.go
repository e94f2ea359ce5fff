package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/adminstatus"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/session"
)

// NextParam is the query parameter carrying the originally requested location
// to the sign-in page.
const NextParam = "next"

// StatusSource is the admin-status oracle as seen by the gate.
type StatusSource interface {
	Watch(p session.Principal) (adminstatus.Status, <-chan struct{})
}

// Observer receives one call per decided request.
type Observer interface {
	ObserveGate(requirement, outcome string)
}

// Config tunes the HTTP gate.
type Config struct {
	Paths Paths
	// SettleWait is how long a request waits for pending oracle state before
	// answering with the loading outcome.
	SettleWait time.Duration
	// RetryPath re-triggers the admin-status oracle.
	RetryPath string
}

// Gate applies Decide to HTTP requests.
type Gate struct {
	source   StatusSource
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

// New constructs a Gate.
func New(source StatusSource, cfg Config, logger *slog.Logger, observer Observer) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Paths = cfg.Paths.withDefaults()
	if cfg.RetryPath == "" {
		cfg.RetryPath = cfg.Paths.Admin + "/status/refresh"
	}
	return &Gate{source: source, cfg: cfg, logger: logger, observer: observer}
}

// Evaluate decides for the given snapshot, re-deciding on every oracle
// transition while the outcome is loading, up to SettleWait. When ctx ends
// first the pending evaluation is discarded and ctx.Err() is returned.
// RequireNone never consults the oracle.
func (g *Gate) Evaluate(ctx context.Context, snap session.Snapshot, req Requirement, location string) (Outcome, error) {
	var deadline <-chan time.Time
	if g.cfg.SettleWait > 0 {
		timer := time.NewTimer(g.cfg.SettleWait)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		var status adminstatus.Status
		var changed <-chan struct{}
		if snap.Principal != nil && g.source != nil && req != RequireNone {
			status, changed = g.source.Watch(*snap.Principal)
		}
		out := Decide(Input{
			SessionLoading: snap.Loading,
			Principal:      snap.Principal,
			Status:         status,
			Requirement:    req,
			Location:       location,
		}, g.cfg.Paths)
		if out.Kind != KindLoading || changed == nil || deadline == nil {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-deadline:
			return out, nil
		case <-changed:
		}
	}
}

// Require returns middleware admitting only requests that satisfy req.
func (g *Gate) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, _ := session.SnapshotFromContext(r.Context())
			out, err := g.Evaluate(r.Context(), snap, req, r.URL.RequestURI())
			if err != nil {
				// The client went away; a late decision must not be applied.
				g.logger.Debug("gate evaluation discarded", slog.String("path", r.URL.Path), slog.Any("error", err))
				return
			}
			if g.observer != nil {
				g.observer.ObserveGate(req.String(), out.Kind.String())
			}
			switch out.Kind {
			case KindRender:
				next.ServeHTTP(w, r)
			case KindLoading:
				w.Header().Set("Retry-After", "1")
				httpx.JSON(w, http.StatusAccepted, loadingBody{State: "loading"})
			case KindError:
				httpx.JSON(w, http.StatusServiceUnavailable, retryProblem{
					ProblemDetail: httpx.ProblemDetail{
						Title:  "Admin status unavailable",
						Status: http.StatusServiceUnavailable,
						Detail: out.Error,
					},
					Retry: g.cfg.RetryPath,
				})
			case KindRedirect:
				g.logger.Debug("gate redirect", slog.String("path", r.URL.Path), slog.String("target", out.Target))
				http.Redirect(w, r, redirectTarget(out), http.StatusSeeOther)
			}
		})
	}
}

type loadingBody struct {
	State string `json:"state"`
}

type retryProblem struct {
	httpx.ProblemDetail
	Retry string `json:"retry"`
}

func redirectTarget(out Outcome) string {
	if out.From == "" {
		return out.Target
	}
	sep := "?"
	if strings.Contains(out.Target, "?") {
		sep = "&"
	}
	return out.Target + sep + NextParam + "=" + url.QueryEscape(out.From)
}
