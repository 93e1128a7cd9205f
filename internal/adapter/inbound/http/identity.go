package edgegateway

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/gwcontext"
	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
)

// identityInjectionMiddleware mints a fresh S2S token into Authorization,
// mints a new short-lived user assertion into X-NV-User-Assertion
// (dropping any inbound one), and sets X-NV-Api-Version. No-op for paths
// outside the /api/:slug/:version shape.
func identityInjectionMiddleware(cfg Config, deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gc := gwcontext.FromContext(r.Context())
			if gc == nil || gc.Route.Slug == "" {
				next.ServeHTTP(w, r)
				return
			}

			r.Header.Del(userAssertionHeader)

			if deps.Minter != nil {
				s2sToken, _, err := deps.Minter.Mint(r.Context(), s2s.MintOptions{
					Issuer:   cfg.S2SIssuer,
					Audience: gc.Route.Slug,
					Subject:  cfg.S2SIssuer,
					TTL:      int(cfg.MintedS2STTL.Seconds()),
					NbfSkew:  int(cfg.MintedS2SNbfSkew.Seconds()),
				})
				if err != nil {
					writeGateError(w, r, gc, apperr.Wrap(apperr.KindConfig, "s2s_mint_failed", err).WithStatus(http.StatusBadGateway))
					return
				}
				r.Header.Set("Authorization", "Bearer "+s2sToken)

				assertion, _, err := deps.Minter.Mint(r.Context(), s2s.MintOptions{
					Issuer:   cfg.S2SIssuer,
					Audience: gc.Route.Slug,
					Subject:  gc.Identity.Subject,
					TTL:      int(cfg.MintedAssertionTTL.Seconds()),
					NbfSkew:  int(cfg.MintedAssertionSkew.Seconds()),
					Extra:    map[string]any{"minAccessLevel": gc.Identity.MinAccessLevel},
				})
				if err != nil {
					writeGateError(w, r, gc, apperr.Wrap(apperr.KindConfig, "assertion_mint_failed", err).WithStatus(http.StatusBadGateway))
					return
				}
				r.Header.Set(userAssertionHeader, assertion)
			}

			r.Header.Set("X-Nv-Api-Version", "v"+strconv.Itoa(gc.Route.Version))
			r.Header.Set("X-Service-Name", cfg.S2SIssuer)

			if gc.RequestID == "" {
				gc.RequestID = uuid.NewString()
			}
			r.Header.Set("X-Request-Id", gc.RequestID)

			next.ServeHTTP(w, r)
		})
	}
}
