package jwks

import "context"

// Cache presents the current JwkSet to HTTP consumers while avoiding
// thundering herds on refresh. Implementations must single-flight
// concurrent refreshes: concurrent GetJWKS callers during a miss share one
// in-flight fetch.
type Cache interface {
	// GetJWKS returns the current key set, refreshing if the cached entry
	// has expired. If the cache is cold and refresh fails, it fails with
	// apperr.KindUpstream / CodeJWKSUnavailable; a stale value is never
	// served past its TTL.
	GetJWKS(ctx context.Context) (Set, error)

	// ExpireNow forces the next GetJWKS call to refresh, regardless of
	// TTL. Exists for rotation tests.
	ExpireNow()
}
