// Package s2scaller implements outbound.S2SCall: the single concrete HTTP
// call used by both the svcconfig mirror (polling the facilitator) and the
// audit dispatcher (sending batches to the sink). Each call mints a fresh,
// short-lived S2S bearer assertion via s2s.Minter and attaches it as
// Authorization, the same way EdgeGateway's identity injection step does
// for proxied requests.
package s2scaller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/meridianmesh/edge-gateway/internal/domain/s2s"
	"github.com/meridianmesh/edge-gateway/internal/port/outbound"
)

// Caller implements outbound.S2SCall.
type Caller struct {
	httpClient *http.Client
	minter     s2s.Minter
	issuer     string
	audience   string
	ttlSec     int
	nbfSkew    int
}

// New builds a Caller. httpClient may be nil, in which case
// http.DefaultClient is used. audience is the default "aud" minted for
// outbound calls this Caller makes (the facilitator's or the audit sink's
// service slug).
func New(httpClient *http.Client, minter s2s.Minter, issuer, audience string, ttlSec, nbfSkew int) *Caller {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Caller{httpClient: httpClient, minter: minter, issuer: issuer, audience: audience, ttlSec: ttlSec, nbfSkew: nbfSkew}
}

// Call mints a fresh S2S assertion, attaches it to Authorization, and
// executes req.
func (c *Caller) Call(ctx context.Context, req outbound.S2SCallRequest) (outbound.S2SCallResponse, error) {
	token, _, err := c.minter.Mint(ctx, s2s.MintOptions{
		Issuer:   c.issuer,
		Audience: c.audience,
		TTL:      c.ttlSec,
		NbfSkew:  c.nbfSkew,
	})
	if err != nil {
		return outbound.S2SCallResponse{}, fmt.Errorf("s2s call: mint assertion: %w", err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return outbound.S2SCallResponse{}, fmt.Errorf("s2s call: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return outbound.S2SCallResponse{}, fmt.Errorf("s2s call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return outbound.S2SCallResponse{}, fmt.Errorf("s2s call: read response: %w", err)
	}

	return outbound.S2SCallResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

var _ outbound.S2SCall = (*Caller)(nil)
