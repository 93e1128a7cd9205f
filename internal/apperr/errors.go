// Package apperr defines the typed error taxonomy shared across the gateway,
// S2S client/verifier, svcconfig mirror, and audit WAL. Every gate in the
// request pipeline short-circuits with one of these kinds; nothing is
// silently converted on the way to the wire.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of error and the HTTP status it surfaces as.
type Kind string

const (
	// KindConfig covers missing/invalid environment configuration and
	// ambiguous route policy resolved at load time. Fails boot; if raised
	// mid-request (e.g. a failed S2S mint) it surfaces as 502.
	KindConfig Kind = "config"
	// KindAuth covers missing/invalid bearer tokens (401) and claim
	// mismatches such as audience/issuer (403); Status() disambiguates.
	KindAuth Kind = "auth"
	// KindPolicy covers route-policy resolver failures (502) and policy
	// denials (401/403); Status() disambiguates.
	KindPolicy Kind = "policy"
	// KindUpstream covers proxied-call failures: timeout (504),
	// connect/reset (502), or a passed-through upstream status.
	KindUpstream Kind = "upstream"
	// KindRateLimit surfaces 429 with Retry-After.
	KindRateLimit Kind = "rate_limit"
	// KindReadOnly surfaces 503, optionally with Retry-After.
	KindReadOnly Kind = "read_only"
	// KindTransport covers protocol-level failures, surfaced as 502.
	KindTransport Kind = "transport"
	// KindAudit covers WAL/dispatcher faults. Never surfaced to the
	// caller; downgraded to WARN/ERROR logs by the caller.
	KindAudit Kind = "audit"
	// KindInternal covers uncaught faults, surfaced as 500.
	KindInternal Kind = "internal"
)

// Error is the typed error value propagated through gates. It carries enough
// to build a Problem+JSON body without the translator re-deriving intent.
type Error struct {
	Kind       Kind
	Code       string // stable machine-readable code, e.g. "policy_requires_token"
	Detail     string
	StatusCode int // explicit override; 0 means derive from Kind via Status()
	RetryAfter int // seconds; 0 means omit the header
	cause      error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status this error surfaces as.
func (e *Error) Status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindConfig:
		return http.StatusBadGateway
	case KindAuth:
		return http.StatusUnauthorized
	case KindPolicy:
		return http.StatusBadGateway
	case KindUpstream:
		return http.StatusBadGateway
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindReadOnly:
		return http.StatusServiceUnavailable
	case KindTransport:
		return http.StatusBadGateway
	case KindAudit:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New constructs an *Error with the given kind, stable code, and detail.
func New(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// Wrap constructs an *Error wrapping a cause, preserving errors.Is/As chains.
func Wrap(kind Kind, code string, cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &Error{Kind: kind, Code: code, Detail: detail, cause: cause}
}

// WithStatus returns a copy of e with an explicit status code override, for
// cases where Kind alone is ambiguous (e.g. AuthError claim mismatch = 403
// vs. missing token = 401).
func (e *Error) WithStatus(status int) *Error {
	c := *e
	c.StatusCode = status
	return &c
}

// WithRetryAfter returns a copy of e with a Retry-After value in seconds.
func (e *Error) WithRetryAfter(seconds int) *Error {
	c := *e
	c.RetryAfter = seconds
	return &c
}

// As is a convenience wrapper over errors.As for the common case of
// extracting the typed *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Well-known stable codes shared across packages and surfaced to clients.
const (
	CodeServiceUnknown        = "service_unknown"
	CodeKMSUnavailable        = "kms_unavailable"
	CodeKMSDenied             = "kms_denied"
	CodeJWKSUnavailable       = "jwks_unavailable"
	CodePolicyAmbiguous       = "policy_ambiguous"
	CodePrivateByDefault      = "private_by_default_no_policy"
	CodePolicyRequiresToken   = "policy_requires_token"
	CodeRoutePolicyResolution = "route_policy_resolution_failed"
	CodeTokenInvalid          = "token_invalid"
	CodeTokenExpired          = "token_expired"
	CodeAudienceMismatch      = "audience_mismatch"
	CodeIssuerMismatch        = "issuer_mismatch"
	CodeUpstreamTimeout       = "upstream_timeout"
	CodeUpstreamUnreachable   = "upstream_unreachable"
	CodeCircuitOpen           = "upstream_circuit_open"
	CodeAuthRequired          = "auth_required"
	CodeNotFound              = "not_found"
)
