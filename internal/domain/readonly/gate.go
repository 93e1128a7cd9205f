// Package readonly implements the ReadOnlyGate: blocks mutating methods
// when a runtime flag is set, with exempt path prefixes.
package readonly

import "strings"

var mutatingMethods = map[string]struct{}{
	"POST":   {},
	"PUT":    {},
	"PATCH":  {},
	"DELETE": {},
}

// Gate decides whether a request should be blocked under read-only mode.
// The Enabled flag is re-read per request (via EnabledFunc) so ops can flip
// it without restart.
type Gate struct {
	// EnabledFunc reports the current value of READ_ONLY_MODE.
	EnabledFunc func() bool
	// ExemptPrefixes lists path prefixes exempt from the block, from
	// READ_ONLY_EXEMPT_PREFIXES.
	ExemptPrefixes []string
}

// NewGate builds a Gate. enabledFunc must be non-nil and is called on every
// Check so the flag can flip without restart.
func NewGate(enabledFunc func() bool, exemptPrefixes []string) *Gate {
	return &Gate{EnabledFunc: enabledFunc, ExemptPrefixes: exemptPrefixes}
}

// Check returns true if the request is allowed through.
func (g *Gate) Check(method, path string) bool {
	if !g.EnabledFunc() {
		return true
	}
	if _, mutating := mutatingMethods[strings.ToUpper(method)]; !mutating {
		return true
	}
	for _, prefix := range g.ExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
