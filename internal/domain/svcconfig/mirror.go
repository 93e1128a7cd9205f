package svcconfig

import "context"

// Mirror answers resolveTarget and routePolicyFor in O(1) under load.
// Implementations refresh periodically from the facilitator over S2S; on
// refresh failure they keep the last good snapshot and emit a warning
// rather than failing requests. Snapshots are immutable; replacement is an
// atomic pointer swap, and a reader's snapshot reference is stable for the
// duration of one request.
type Mirror interface {
	// ResolveTarget returns the SvcRecord for (env, slug, version), or an
	// apperr with Code apperr.CodeServiceUnknown if not present in the
	// current snapshot.
	ResolveTarget(ctx context.Context, env, slug string, version int) (Record, error)

	// RoutePolicyFor returns the effective RoutePolicy for (env, slug,
	// version), which may be nil if the record carries no policy.
	RoutePolicyFor(ctx context.Context, env, slug string, version int) (*Policy, error)

	// Refresh forces an out-of-band refresh from the facilitator. Returns
	// the refresh error without discarding the current snapshot.
	Refresh(ctx context.Context) error
}
