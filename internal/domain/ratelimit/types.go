// Package ratelimit provides rate limiting domain types: a fixed-window
// token budget per (ip+method+path).
package ratelimit

import (
	"fmt"
	"time"
)

// Config defines the rate limiting parameters for one key. Both Points and
// WindowMs are required with no defaults: Points > 0 and WindowMs > 0.
type Config struct {
	// Points is the number of allowed requests in the window.
	Points int

	// Window is the fixed window duration. A window boundary is a hard
	// reset: the N+1th request in a window is denied, and the first
	// request of the next window is allowed.
	Window time.Duration
}

// Result contains the result of a rate limit check.
type Result struct {
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is the duration until the window resets, meaningful only
	// when Allowed is false. The rate-limit middleware rounds it up to
	// whole seconds for the Retry-After header.
	RetryAfter time.Duration
}

// FormatKey builds the fixed-window key "ip|method|normalizedPath".
func FormatKey(ip, method, normalizedPath string) string {
	return fmt.Sprintf("%s|%s|%s", ip, method, normalizedPath)
}
