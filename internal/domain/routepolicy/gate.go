package routepolicy

import (
	"context"
	"regexp"
	"strings"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
)

// healthPathRE matches /api/<slug>/v<N>/health/* paths, which bypass the
// gate entirely.
var healthPathRE = regexp.MustCompile(`^/api/[^/]+/v\d+/health(/|$)`)

// Decision is the outcome of a single route-policy resolution.
type Decision struct {
	Allowed        bool
	Bypassed       bool // health path; no policy evaluated
	MinAccessLevel int
	Code           string // stable reason code when denied
}

// Resolver is the narrow dependency the Gate needs from the svcconfig
// mirror: policy lookup for one (env, slug, version).
type Resolver interface {
	RoutePolicyFor(ctx context.Context, env, slug string, version int) (*svcconfig.Policy, error)
}

// Gate resolves policy for an inbound request and applies the pre-token
// decision rules.
type Gate struct {
	resolver Resolver
	cache    *Cache
}

// NewGate builds a Gate over resolver, with decisions cached per (env, slug,
// method, normalizedPath) for ttl.
func NewGate(resolver Resolver, cache *Cache) *Gate {
	return &Gate{resolver: resolver, cache: cache}
}

// Evaluate resolves the access decision for one inbound request.
// hasBearer indicates whether the caller presented X-NV-User-Assertion.
func (g *Gate) Evaluate(ctx context.Context, env, slug string, version int, method, path string, hasBearer bool) (Decision, error) {
	if healthPathRE.MatchString(path) {
		return Decision{Allowed: true, Bypassed: true}, nil
	}

	normalizedPath := normalizePath(path)
	key := CacheKey{Env: env, Slug: slug, Method: method, Path: normalizedPath}

	if g.cache != nil {
		if d, ok := g.cache.Get(key); ok {
			return d, nil
		}
	}

	policy, err := g.resolver.RoutePolicyFor(ctx, env, slug, version)
	if err != nil {
		return Decision{}, apperr.Wrap(apperr.KindPolicy, apperr.CodeRoutePolicyResolution, err)
	}

	decision, evalErr := evaluatePolicy(policy, version, method, normalizedPath, hasBearer)
	if evalErr != nil {
		return Decision{}, evalErr
	}

	if g.cache != nil {
		g.cache.Put(key, decision)
	}
	return decision, nil
}

func evaluatePolicy(policy *svcconfig.Policy, version int, method, normalizedPath string, hasBearer bool) (Decision, error) {
	if policy == nil {
		if hasBearer {
			return Decision{Allowed: true}, nil
		}
		return Decision{Allowed: false, Code: apperr.CodePrivateByDefault},
			apperr.New(apperr.KindAuth, apperr.CodePrivateByDefault, "no route policy and no bearer token").WithStatus(401)
	}

	rule, err := MatchRule(*policy, version, method, normalizedPath)
	if err != nil {
		return Decision{}, err
	}

	public := policy.Defaults.Public
	minAccess := 0
	if rule != nil {
		public = rule.Public
		minAccess = rule.MinAccessLevel
	}

	if hasBearer {
		return Decision{Allowed: true, MinAccessLevel: minAccess}, nil
	}

	if public && minAccess == 0 {
		return Decision{Allowed: true, MinAccessLevel: 0}, nil
	}

	return Decision{Allowed: false, Code: apperr.CodePolicyRequiresToken},
		apperr.New(apperr.KindAuth, apperr.CodePolicyRequiresToken, "route policy requires a bearer token").WithStatus(401)
}

// normalizePath lower-cases nothing (paths are case-sensitive) but trims a
// trailing slash beyond root, so "/api/x/" and "/api/x" cache to the same
// key.
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}
