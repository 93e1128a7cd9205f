// Package ctxkey collects the unexported-type context keys shared by more
// than one package. Keeping them here, with zero imports of anything else
// under internal/, means no two packages can collide on an interface{} key
// or create an import cycle just to stash something on a context.Context.
package ctxkey

// LoggerKey addresses a per-request logger stored on a context. No
// middleware in this module stores one under it.
type LoggerKey struct{}

// RequestIDKey addresses the inbound request's correlation id.
type RequestIDKey struct{}

// GatewayContextKey addresses the typed per-request gwcontext.Context.
type GatewayContextKey struct{}
