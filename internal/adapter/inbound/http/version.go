package edgegateway

import (
	"strconv"
	"strings"
)

// parseAPIPath splits "/api/<slug>/<version>/<tail...>" into its parts.
// ok is false for any path that does not match this shape; callers should
// let such requests fall through to the 404 handler.
func parseAPIPath(path string) (slug, versionRaw, tail string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/")
	segments := strings.SplitN(trimmed, "/", 4)
	if len(segments) < 3 || segments[0] != "api" {
		return "", "", "", false
	}
	slug = segments[1]
	versionRaw = segments[2]
	if slug == "" || versionRaw == "" {
		return "", "", "", false
	}
	if len(segments) == 4 {
		tail = "/" + segments[3]
	} else {
		tail = "/"
	}
	return slug, versionRaw, tail, true
}

// parseVersion normalizes "v1"/"V1"/"1" to a positive integer, rejecting
// zero, negative and non-integer versions such as "v0", "-1", "v1.2".
// Whatever strconv.Atoi accepts after the optional "v"/"V" is taken, so
// "v01" and "+1" also parse as 1.
func parseVersion(raw string) (int, bool) {
	s := raw
	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
