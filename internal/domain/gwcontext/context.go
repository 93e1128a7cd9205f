// Package gwcontext provides a typed per-request context struct carrying
// request id, identity, route match, and a scratch map for
// middleware-specific fields, stored under one unexported context key with
// typed accessors. Middleware consumes and produces explicit fields rather
// than reading and writing untyped map keys.
package gwcontext

import (
	"context"

	"github.com/meridianmesh/edge-gateway/internal/ctxkey"
)

// RouteMatch is the resolved S2SProxy route for the current request.
type RouteMatch struct {
	Env     string
	Slug    string
	Version int
	Tail    string // path after /api/:slug/:version
}

// Identity is the caller identity established by the auth gate, if any.
type Identity struct {
	Subject        string
	MinAccessLevel int
	Authenticated  bool
}

// Context is the typed per-request state threaded through the middleware
// pipeline. Zero value is valid and has no identity/route.
type Context struct {
	RequestID string
	Route     RouteMatch
	Identity  Identity

	// Scratch holds middleware-specific fields that do not warrant a
	// first-class struct field, e.g. a trace5xx observer's "first 5xx
	// site" marker. Keys are short, stable, and owned by one middleware.
	Scratch map[string]any
}

// WithContext returns a new context.Context carrying gc, stored under
// ctxkey.GatewayContextKey.
func WithContext(ctx context.Context, gc *Context) context.Context {
	return context.WithValue(ctx, ctxkey.GatewayContextKey{}, gc)
}

// FromContext extracts the *Context stored by WithContext, or nil if absent.
func FromContext(ctx context.Context) *Context {
	gc, _ := ctx.Value(ctxkey.GatewayContextKey{}).(*Context)
	return gc
}

// ScratchSet stores a middleware-owned scratch value, initializing the map
// on first use.
func (c *Context) ScratchSet(key string, value any) {
	if c.Scratch == nil {
		c.Scratch = make(map[string]any)
	}
	c.Scratch[key] = value
}

// ScratchGet retrieves a middleware-owned scratch value.
func (c *Context) ScratchGet(key string) (any, bool) {
	if c.Scratch == nil {
		return nil, false
	}
	v, ok := c.Scratch[key]
	return v, ok
}
