package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"cashless/internal/auth"
)

func TestHealth(t *testing.T) {
	h := newTestHandler(testDeps{})
	rr := serve(t, h, http.MethodGet, "/health", nil, auth.Principal{})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(testDeps{})
	req := httptest.NewRequest(http.MethodOptions, "/transfers", nil)
	req.Header.Set("Origin", "https://wallet.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on preflight")
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" https://a.example.com, ,https://b.example.com ")
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", got)
	}
	if got := splitOrigins(""); len(got) != 1 || got[0] != "*" {
		t.Fatalf("expected wildcard default, got %v", got)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	h := newTestHandler(testDeps{})
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/accounts/me/balance"},
		{http.MethodPost, "/transfers"},
		{http.MethodGet, "/requests/cash-in"},
		{http.MethodPost, "/requests/req-1/approve"},
		{http.MethodGet, "/admin/fees"},
	} {
		rr := serve(t, h, route.method, route.path, nil, auth.Principal{})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, rr.Code)
		}
	}
}
