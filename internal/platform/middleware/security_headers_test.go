package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveWithHeaders(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	h := SecurityHeaders()(func(c echo.Context) error {
		return c.JSON(http.StatusOK, []int{})
	})
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestSecurityHeaders_Anonymous(t *testing.T) {
	rec := serveWithHeaders(t, httptest.NewRequest(http.MethodGet, "/api/health/", nil))
	for _, kv := range apiHeaders {
		if got := rec.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("header %s: got %q, want %q", kv[0], got, kv[1])
		}
	}
	if v := rec.Header().Get(echo.HeaderVary); v != "" {
		t.Errorf("expected no Vary header, got %q", v)
	}
}

func TestSecurityHeaders_VaryOnToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/patients/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Token abc")
	rec := serveWithHeaders(t, req)
	if v := rec.Header().Get(echo.HeaderVary); v != echo.HeaderAuthorization {
		t.Errorf("expected Vary: Authorization, got %q", v)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected Cache-Control: no-store")
	}
}
