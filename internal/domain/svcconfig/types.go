// Package svcconfig defines the service directory entities and the Mirror
// port: the authoritative (env, slug, version) -> baseURL + route policy
// directory, mirrored into every service.
package svcconfig

import "fmt"

// UserAssertionMode controls whether an end-user assertion is required,
// optional, or forbidden for a rule or policy default.
type UserAssertionMode string

const (
	UserAssertionRequired UserAssertionMode = "required"
	UserAssertionOptional UserAssertionMode = "optional"
	UserAssertionForbidden UserAssertionMode = "forbidden"
)

// Record is the SvcRecord entity, uniquely keyed by (Env, Slug, Version).
// BaseURL is absolute.
type Record struct {
	Env          string
	Slug         string
	Version      int
	BaseURL      string
	InternalOnly bool
	RoutePolicy  *Policy
}

// Key returns the (env, slug, version) tuple this record is uniquely keyed by.
func (r Record) Key() RecordKey {
	return RecordKey{Env: r.Env, Slug: r.Slug, Version: r.Version}
}

// RecordKey is the unique identity of a Record.
type RecordKey struct {
	Env     string
	Slug    string
	Version int
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/v%d", k.Env, k.Slug, k.Version)
}

// Defaults is the policy-wide fallback applied when no rule matches.
type Defaults struct {
	Public         bool
	UserAssertion  UserAssertionMode
}

// Rule is a single RouteRule: method + path-prefix scoped access rule. A
// rule may be scoped to a specific SvcRecord version or left
// version-agnostic; resolution prefers an exact version match over one
// scoped to "any version" (see routepolicy.MatchRule's precedence).
type Rule struct {
	Version        int // 0 means "any version"
	Method         string // "" means "any method"
	PathPrefix     string
	Public         bool
	UserAssertion  UserAssertionMode
	MinAccessLevel int
}

// Policy is the RoutePolicy entity: a revisioned set of rules plus
// directory-wide defaults. Most-specific rule wins; routepolicy.MatchRule
// fails a request that matches tied rules. Policies are not checked for
// ties when they are loaded.
type Policy struct {
	Revision int
	Defaults Defaults
	Rules    []Rule
}
