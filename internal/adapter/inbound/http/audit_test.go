package edgegateway

import "testing"

func TestIsAuditEligible(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/health", false},
		{"/ready", false},
		{"/live", false},
		{"/favicon.ico", false},
		{"/api/user/v1/health", false},
		{"/api/user/v1/health/live", false},
		{"/api/user/v1/users/42", true},
		{"/api/user/v1/healthcheck", true}, // not a "/health" boundary match
	}
	for _, c := range cases {
		if got := isAuditEligible(c.path); got != c.want {
			t.Errorf("isAuditEligible(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestSlugFromPath(t *testing.T) {
	if got := slugFromPath("/api/users/v1/x"); got != "user" {
		t.Errorf("slugFromPath legacy trailing-s strip = %q, want %q", got, "user")
	}
	if got := slugFromPath("/api/act/v1/x"); got != "act" {
		t.Errorf("slugFromPath = %q, want %q", got, "act")
	}
}
