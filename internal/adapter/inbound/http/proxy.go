package edgegateway

import (
	"io"
	"net/http"
	"strings"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/gwcontext"
	upstreamdomain "github.com/meridianmesh/edge-gateway/internal/domain/upstream"
)

// hopByHopHeaders are stripped from both the outbound and inbound legs of
// the proxy.
var hopByHopHeaders = []string{
	"Connection",
	"Transfer-Encoding",
	"Keep-Alive",
	"Upgrade",
	"Te",
	"Host",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Proxy-Authorization",
}

// S2SProxyHandler does versioned slug routing to the resolved upstream
// target, header sanitation, and a streaming body bridge in both
// directions.
type S2SProxyHandler struct {
	cfg  Config
	deps Deps
}

// NewS2SProxyHandler builds the terminal proxy handler for the EdgeGateway
// router.
func NewS2SProxyHandler(cfg Config, deps Deps) *S2SProxyHandler {
	return &S2SProxyHandler{cfg: cfg, deps: deps}
}

func (h *S2SProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gc := gwcontext.FromContext(r.Context())

	slug, versionRaw, tail, ok := parseAPIPath(r.URL.Path)
	if !ok {
		notFoundHandler(w, r)
		return
	}
	version, ok := parseVersion(versionRaw)
	if !ok {
		notFoundHandler(w, r)
		return
	}

	record, err := h.deps.Mirror.ResolveTarget(r.Context(), h.cfg.Env, slug, version)
	if err != nil {
		writeGateError(w, r, gc, err)
		return
	}

	upstreamURL := strings.TrimRight(record.BaseURL, "/") + tail
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	header := sanitizeHeader(r.Header)

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	timeoutMS := int(h.cfg.InternalProxyTimeout.Milliseconds())
	resp, err := h.deps.Upstream.Do(r.Context(), upstreamdomain.Request{
		Method:  r.Method,
		URL:     upstreamURL,
		Header:  header,
		Body:    body,
		Timeout: timeoutMS,
	})
	if err != nil {
		writeGateError(w, r, gc, err)
		return
	}
	defer resp.Body.Close()

	outHeader := w.Header()
	for k, vals := range resp.Header {
		outHeader[k] = vals
	}
	for _, hh := range hopByHopHeaders {
		outHeader.Del(hh)
	}

	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// sanitizeHeader copies src minus hop-by-hop headers. Authorization is
// copied as it stands: when a Minter is wired, identity injection has
// already replaced any inbound value with the gateway's own S2S bearer;
// without a Minter the inbound Authorization passes through.
func sanitizeHeader(src http.Header) http.Header {
	out := src.Clone()
	for _, h := range hopByHopHeaders {
		out.Del(h)
	}
	return out
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	gc := gwcontext.FromContext(r.Context())
	requestID := ""
	if gc != nil {
		requestID = gc.RequestID
	}
	apperr.WriteProblem(w, r.URL.Path, requestID,
		apperr.New(apperr.KindInternal, apperr.CodeNotFound, "no matching route").WithStatus(http.StatusNotFound))
}
