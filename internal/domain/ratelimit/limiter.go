package ratelimit

import "context"

// Limiter is the interface for rate limiting operations. Implementations
// must use a fixed-window algorithm: a hard reset at the window boundary,
// not a smoothing algorithm like GCRA or a leaky bucket.
//
// The interface is storage-agnostic so deployments can swap an in-memory
// store for a distributed one (Redis) while preserving fixed-window
// semantics.
//
// Implementations must fail open: on an internal store error, Allow returns
// Allowed=true rather than blocking the caller (availability over
// protection).
type Limiter interface {
	// Allow checks and atomically debits one request against key's
	// current fixed window.
	Allow(ctx context.Context, key string, config Config) (Result, error)
}
