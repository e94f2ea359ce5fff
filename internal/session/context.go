package session

import "context"

type snapshotContextKey struct{}

// WithSnapshot attaches the resolved session snapshot to the context.
func WithSnapshot(ctx context.Context, snap Snapshot) context.Context {
	if snap.Principal != nil {
		p := *snap.Principal
		snap.Principal = &p
	}
	return context.WithValue(ctx, snapshotContextKey{}, snap)
}

// WithPrincipal is a shorthand for a settled snapshot carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return WithSnapshot(ctx, Snapshot{Principal: &p})
}

// SnapshotFromContext returns the snapshot stored in ctx. The second result
// is false when no snapshot was resolved for this context.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	if ctx == nil {
		return Snapshot{}, false
	}
	snap, ok := ctx.Value(snapshotContextKey{}).(Snapshot)
	return snap, ok
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	snap, ok := SnapshotFromContext(ctx)
	if !ok || snap.Principal == nil {
		return Principal{}, false
	}
	return *snap.Principal, true
}
