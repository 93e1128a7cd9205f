// Package outbound defines the port seams that break the cycle between the
// svcconfig mirror, the S2S proxy, and the audit dispatcher: the dispatcher
// and the mirror's own refresh path depend on S2SCall. ResolveTarget is a
// narrow target-lookup view of the mirror; the S2SProxy takes the domain
// svcconfig.Mirror port instead. The composition root wires concrete
// adapters to these ports, so none of the three packages import each other
// directly.
package outbound

import (
	"context"

	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
)

// ResolveTarget is the narrow view of svcconfig.Mirror that S2SProxy needs:
// resolving an upstream target for a request, without depending on the
// mirror's refresh/Policy machinery.
type ResolveTarget interface {
	ResolveTarget(ctx context.Context, env, slug string, version int) (svcconfig.Record, error)
}

// S2SCallRequest is one outbound S2S-authenticated HTTP call.
type S2SCallRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// S2SCallResponse is the result of an S2SCall.
type S2SCallResponse struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// S2SCall is the outbound S2S-authenticated HTTP call used by the audit
// dispatcher (sending batches to the sink) and by the svcconfig mirror
// (polling the facilitator). Both depend on this port instead of on each
// other or on a concrete HTTP client directly.
type S2SCall interface {
	Call(ctx context.Context, req S2SCallRequest) (S2SCallResponse, error)
}
