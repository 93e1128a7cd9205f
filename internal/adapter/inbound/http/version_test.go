package edgegateway

import "testing"

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantOK  bool
	}{
		{"v1", 1, true},
		{"V1", 1, true},
		{"1", 1, true},
		{"v42", 42, true},
		{"v0", 0, false},
		{"-1", 0, false},
		{"v1.2", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseVersion(c.in)
		if ok != c.wantOK || (ok && got != c.want) {
			t.Errorf("parseVersion(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.wantOK)
		}
	}
}

func TestParseAPIPath(t *testing.T) {
	slug, version, tail, ok := parseAPIPath("/api/user/v1/users/42")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if slug != "user" || version != "v1" || tail != "/users/42" {
		t.Errorf("got slug=%q version=%q tail=%q", slug, version, tail)
	}

	_, _, _, ok = parseAPIPath("/healthz")
	if ok {
		t.Error("expected ok=false for non-api path")
	}

	slug, version, tail, ok = parseAPIPath("/api/user/v1")
	if !ok || tail != "/" {
		t.Errorf("parseAPIPath bare slug/version: got tail=%q ok=%v", tail, ok)
	}
}
