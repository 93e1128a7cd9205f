// Package routepolicy implements the RoutePolicyGate: resolves per-(slug,
// version, method, path) access policy and applies the pre-token gate.
package routepolicy

import (
	"strings"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
)

// MatchRule resolves the most-specific rule in policy for (version, method,
// normalizedPath) using the following precedence:
//  1. Exact version match over "any version".
//  2. Explicit method over "any method".
//  3. Longest pathPrefix (case-sensitive, with "/" boundaries).
//
// Ties at every tiebreaker are a hard error (fail-closed): returns an
// apperr with Code apperr.CodePolicyAmbiguous.
func MatchRule(policy svcconfig.Policy, version int, method, normalizedPath string) (*svcconfig.Rule, error) {
	type candidate struct {
		rule          svcconfig.Rule
		versionExact  bool
		methodExact   bool
		prefixLen     int
	}

	var best *candidate
	var tied bool

	for _, r := range policy.Rules {
		if !pathPrefixMatches(r.PathPrefix, normalizedPath) {
			continue
		}
		if r.Version != 0 && r.Version != version {
			continue
		}
		if r.Method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}

		c := candidate{
			rule:         r,
			versionExact: r.Version != 0,
			methodExact:  r.Method != "",
			prefixLen:    len(r.PathPrefix),
		}

		if best == nil {
			best = &c
			tied = false
			continue
		}

		cmp := compareCandidates(c, *best)
		switch {
		case cmp > 0:
			best = &c
			tied = false
		case cmp == 0:
			tied = true
		}
	}

	if best == nil {
		return nil, nil
	}
	if tied {
		return nil, apperr.New(apperr.KindPolicy, apperr.CodePolicyAmbiguous,
			"multiple route rules tie on version/method/pathPrefix precedence")
	}
	rule := best.rule
	return &rule, nil
}

// compareCandidates returns >0 if a is more specific than b, <0 if less, 0 if
// tied, applying the three-tier precedence in order.
func compareCandidates(a, b struct {
	rule         svcconfig.Rule
	versionExact bool
	methodExact  bool
	prefixLen    int
}) int {
	if a.versionExact != b.versionExact {
		if a.versionExact {
			return 1
		}
		return -1
	}
	if a.methodExact != b.methodExact {
		if a.methodExact {
			return 1
		}
		return -1
	}
	if a.prefixLen != b.prefixLen {
		if a.prefixLen > b.prefixLen {
			return 1
		}
		return -1
	}
	return 0
}

// pathPrefixMatches checks prefix matching with "/" boundaries: prefix must
// match the path exactly, or match up to (and including, or immediately
// followed by) a "/" boundary.
func pathPrefixMatches(prefix, path string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	// boundary: prefix itself ends in "/", or the next rune in path is "/"
	if strings.HasSuffix(prefix, "/") {
		return true
	}
	return path[len(prefix)] == '/'
}
