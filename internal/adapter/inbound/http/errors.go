package edgegateway

import (
	"log/slog"
	"net/http"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/gwcontext"
)

// recoverer is the final error handler of the middleware chain: a panic
// anywhere in the chain still yields Problem+JSON, never a bare stack
// trace on the wire.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					gc := gwcontext.FromContext(r.Context())
					requestID := ""
					if gc != nil {
						requestID = gc.RequestID
					}
					logger.Error("panic recovered", "error", rec, "path", r.URL.Path, "request_id", requestID)
					apperr.WriteProblem(w, r.URL.Path, requestID,
						apperr.New(apperr.KindInternal, "internal_error", "unhandled panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
