package edgegateway

import (
	"net/http"
	"testing"
)

func TestAuthRequired(t *testing.T) {
	cfg := Config{
		AuthPublicPrefixes:           []string{"/api/public"},
		PublicGetRequireAuthPrefixes: []string{"/api/secretget"},
	}

	if authRequired(cfg, http.MethodGet, "/api/user/v1/users") {
		t.Error("GET outside PublicGetRequireAuthPrefixes should not require auth")
	}
	if !authRequired(cfg, http.MethodGet, "/api/secretget/v1/x") {
		t.Error("GET under PublicGetRequireAuthPrefixes should require auth")
	}
	if authRequired(cfg, http.MethodPost, "/api/public/v1/x") {
		t.Error("POST under AuthPublicPrefixes should not require auth")
	}
	if !authRequired(cfg, http.MethodPost, "/api/user/v1/users") {
		t.Error("POST outside AuthPublicPrefixes should require auth")
	}
}
