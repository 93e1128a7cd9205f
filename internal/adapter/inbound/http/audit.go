package edgegateway

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianmesh/edge-gateway/internal/domain/audit"
	"github.com/meridianmesh/edge-gateway/internal/domain/gwcontext"
)

// auditIneligiblePaths are never captured.
var auditIneligiblePaths = []string{"/health", "/ready", "/live", "/favicon.ico"}

// auditAPIHealthRE matches /api/<slug>/v<N>/health/*, also exempt from
// capture.
var auditAPIHealthRE = regexp.MustCompile(`^/api/[^/]+/v\d+/health(/|$)`)

func isAuditEligible(path string) bool {
	for _, p := range auditIneligiblePaths {
		if path == p {
			return false
		}
	}
	return !auditAPIHealthRE.MatchString(path)
}

// auditCaptureMiddleware derives an AuditEvent from the finished response
// and enqueues it to the WAL, never throwing.
func auditCaptureMiddleware(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAuditEligible(r.URL.Path) || deps.WAL == nil {
				next.ServeHTTP(w, r)
				return
			}

			sw, ok := w.(*statusWriter)
			if !ok {
				sw = newStatusWriter(w)
				w = sw
			}

			tsStart := time.Now()
			next.ServeHTTP(w, r)
			durationMs := time.Since(tsStart).Milliseconds()

			finalizeReason := audit.FinalizeFinish
			switch {
			case sw.status == http.StatusGatewayTimeout:
				finalizeReason = audit.FinalizeTimeout
			case r.Context().Err() == context.Canceled:
				finalizeReason = audit.FinalizeClientAbort
			}

			gc := gwcontext.FromContext(r.Context())
			requestID := ""
			slug := ""
			if gc != nil {
				requestID = gc.RequestID
				slug = gc.Route.Slug
			}
			if slug == "" {
				slug = slugFromPath(r.URL.Path)
			}

			event := audit.Event{
				EventID:          uuid.NewString(),
				TS:               time.Now(),
				DurationMs:       durationMs,
				RequestID:        requestID,
				Method:           r.Method,
				Path:             r.URL.Path,
				Slug:             slug,
				Status:           sw.status,
				BillableUnits:    1,
				TSStart:          &tsStart,
				DurationReliable: finalizeReason == audit.FinalizeFinish,
				FinalizeReason:   finalizeReason,
				Meta:             auditMeta(r, gc),
			}

			// Never let a malformed event or a refused enqueue surface to
			// the caller; deps.WAL.Enqueue itself is fail-open on
			// back-pressure.
			_ = deps.WAL.Enqueue(r.Context(), event)
		})
	}
}

func auditMeta(r *http.Request, gc *gwcontext.Context) map[string]string {
	meta := map[string]string{"s2sCaller": "gateway"}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		meta["callerIp"] = strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	} else {
		meta["callerIp"] = clientIP(r)
	}
	if gc != nil && gc.Identity.Subject != "" {
		meta["userId"] = gc.Identity.Subject
	}
	return meta
}

// slugFromPath recovers the slug from "/api/<slug>/..." when no route
// context is available, stripping a legacy trailing "s" heuristic.
func slugFromPath(path string) string {
	slug, _, _, ok := parseAPIPath(path)
	if !ok {
		return ""
	}
	return strings.TrimSuffix(slug, "s")
}
