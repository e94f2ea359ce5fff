// Package adminstatus tracks, per principal, whether the principal holds the
// platform-admin and super-admin capabilities. State is held in memory only
// and recomputed on every process start.
package adminstatus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-admin/internal/session"
)

const defaultResolveTimeout = 5 * time.Second

// Status is the cached capability assessment for one principal.
type Status struct {
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	IsSuperAdmin    bool   `json:"is_super_admin"`
	IsLoading       bool   `json:"is_loading"`
	LastError       string `json:"last_error,omitempty"`
}

// Capabilities is what a Resolver reports for a principal.
type Capabilities struct {
	PlatformAdmin bool
	SuperAdmin    bool
}

// Resolver looks capabilities up in the backing store.
type Resolver interface {
	Capabilities(ctx context.Context, p session.Principal) (Capabilities, error)
}

type entry struct {
	principal session.Principal
	status    Status
	gen       uint64
	settledAt time.Time
	changed   chan struct{}
}

// Oracle holds one pending|settled|failed state per principal. Every
// transition closes the entry's changed channel so watchers can re-evaluate.
type Oracle struct {
	resolver Resolver
	timeout  time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
}

// Option customises an Oracle.
type Option func(*Oracle)

// WithMaxAge makes a settled or failed state older than d resolve again on
// its next Watch. Zero keeps states until Refresh or Forget.
func WithMaxAge(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.maxAge = d
		}
	}
}

// NewOracle constructs an Oracle. timeout bounds a single resolution; the
// oracle, not its consumers, owns that bound.
func NewOracle(resolver Resolver, timeout time.Duration, logger *slog.Logger, opts ...Option) *Oracle {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Oracle{
		resolver: resolver,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the current status for p, starting a resolution when none
// exists yet.
func (o *Oracle) Status(p session.Principal) Status {
	status, _ := o.Watch(p)
	return status
}

// Watch returns the current status for p together with a channel that is
// closed on the next state transition.
func (o *Oracle) Watch(p session.Principal) (Status, <-chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[p.Key()]
	switch {
	case !ok:
		e = &entry{principal: p, status: Status{IsLoading: true}, changed: make(chan struct{})}
		o.entries[p.Key()] = e
		o.startLocked(e)
	case o.expiredLocked(e):
		e.status = Status{IsLoading: true}
		o.notifyLocked(e)
		o.group.Forget(p.Key())
		o.startLocked(e)
	}
	return e.status, e.changed
}

// Refresh discards the current assessment for p and resolves it again.
func (o *Oracle) Refresh(p session.Principal) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[p.Key()]
	if !ok {
		e = &entry{principal: p, changed: make(chan struct{})}
		o.entries[p.Key()] = e
	}
	e.principal = p
	e.status = Status{IsLoading: true}
	o.notifyLocked(e)
	o.group.Forget(p.Key())
	o.startLocked(e)
	return e.status
}

// RefreshUser refreshes the status of a user only if it is currently tracked.
func (o *Oracle) RefreshUser(tenantID, userID string) {
	key := session.Principal{ID: userID, TenantID: tenantID}.Key()
	o.mu.Lock()
	e, ok := o.entries[key]
	var p session.Principal
	if ok {
		p = e.principal
	}
	o.mu.Unlock()
	if ok {
		o.Refresh(p)
	}
}

// Forget drops the state held for p, typically on sign-out.
func (o *Oracle) Forget(p session.Principal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[p.Key()]; ok {
		close(e.changed)
		delete(o.entries, p.Key())
	}
	o.group.Forget(p.Key())
}

func (o *Oracle) startLocked(e *entry) {
	o.seq++
	e.gen = o.seq
	gen := e.gen
	p := e.principal
	ch := o.group.DoChan(p.Key(), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		return o.resolver.Capabilities(ctx, p)
	})
	go func() {
		res := <-ch
		caps, _ := res.Val.(Capabilities)
		o.settle(p.Key(), gen, caps, res.Err)
	}()
}

func (o *Oracle) settle(key string, gen uint64, caps Capabilities, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[key]
	if !ok || e.gen != gen {
		// Superseded by Refresh or Forget.
		return
	}
	if err != nil {
		o.logger.Warn("resolve admin status", slog.String("tenant_id", e.principal.TenantID), slog.String("user_id", e.principal.ID), slog.Any("error", err))
		msg := err.Error()
		if msg == "" {
			msg = "admin status unavailable"
		}
		e.status = Status{LastError: msg}
	} else {
		e.status = Status{IsPlatformAdmin: caps.PlatformAdmin, IsSuperAdmin: caps.SuperAdmin}
	}
	e.settledAt = o.now()
	o.notifyLocked(e)
}

func (o *Oracle) expiredLocked(e *entry) bool {
	if o.maxAge <= 0 || e.status.IsLoading || e.settledAt.IsZero() {
		return false
	}
	return o.now().Sub(e.settledAt) >= o.maxAge
}

func (o *Oracle) notifyLocked(e *entry) {
	close(e.changed)
	e.changed = make(chan struct{})
}
