package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/session"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

const defaultWriteTimeout = 5 * time.Second

// Dispatcher hands an entry to an asynchronous writer.
type Dispatcher interface {
	DispatchAudit(ctx context.Context, entry NewEntry) error
}

// FailureSink receives contained write failures.
type FailureSink interface {
	AuditWriteFailed(stage string)
}

// Event describes one privileged action. Tenant and actor are never part of
// it; they always come from the session.
type Event struct {
	Action     Action
	EntityType EntityType
	EntityID   string
	Details    Details
}

// Recorder appends audit entries without letting write failures reach the
// caller.
type Recorder struct {
	store      Store
	cache      *Cache
	dispatcher Dispatcher
	sink       FailureSink
	logger     *slog.Logger
	timeout    time.Duration
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithCache invalidates the tenant's recent view after each write.
func WithCache(cache *Cache) Option {
	return func(r *Recorder) { r.cache = cache }
}

// WithDispatcher routes writes through an asynchronous dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(r *Recorder) { r.dispatcher = d }
}

// WithFailureSink counts contained failures.
func WithFailureSink(sink FailureSink) Option {
	return func(r *Recorder) { r.sink = sink }
}

// WithWriteTimeout bounds a single write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{store: store, logger: logger, timeout: defaultWriteTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry for ev on behalf of the session principal in ctx.
//
// It fails only when ctx carries no principal with both tenant and actor
// (shared.ErrUnauthenticated) or when ev is malformed (ErrInvalidEntry).
// Store and dispatch failures are logged and counted, never returned. The
// caller must invoke Record only after its own effect has been committed.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok || p.ID == "" || p.TenantID == "" {
		return fmt.Errorf("audit: record: %w", shared.ErrUnauthenticated)
	}
	entry := NewEntry{
		TenantID:   p.TenantID,
		ActorID:    p.ID,
		ActorName:  p.DisplayName,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Details:    ev.Details.Clone(),
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	// The caller's cancellation must not abort a write for an effect that
	// already happened.
	ctx = context.WithoutCancel(ctx)
	if r.dispatcher != nil {
		r.contain(ctx, "dispatch", entry, func(ctx context.Context) error {
			return r.dispatcher.DispatchAudit(ctx, entry)
		})
		return nil
	}
	r.contain(ctx, "store", entry, func(ctx context.Context) error {
		return r.Persist(ctx, entry)
	})
	return nil
}

// Persist validates and stores entry, then invalidates the tenant's cached
// views. Unlike Record it reports store failures; the asynchronous worker
// uses it directly.
func (r *Recorder) Persist(ctx context.Context, entry NewEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if _, err := r.store.Append(ctx, entry); err != nil {
		return err
	}
	scope, err := NewTenantScope(entry.TenantID)
	if err != nil {
		return err
	}
	if err := r.cache.Invalidate(ctx, scope); err != nil {
		r.logger.Warn("audit cache invalidation failed", slog.String("tenant_id", entry.TenantID), slog.Any("error", err))
	}
	return nil
}

func (r *Recorder) contain(ctx context.Context, stage string, entry NewEntry, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		err = fn(ctx)
	}()
	if err == nil {
		return
	}
	r.logger.Error("audit write failed",
		slog.String("stage", stage),
		slog.String("tenant_id", entry.TenantID),
		slog.String("actor_id", entry.ActorID),
		slog.String("action", string(entry.Action)),
		slog.String("entity_type", string(entry.EntityType)),
		slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		slog.Any("error", err),
	)
	if r.sink != nil {
		r.sink.AuditWriteFailed(stage)
	}
}
