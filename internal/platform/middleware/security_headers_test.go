package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name string
		hsts bool
	}{
		{"production", true},
		{"development", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dentists/d1", nil), rec)

			err := SecurityHeaders(tt.hsts)(func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusNotFound, "not found")
			})(c)
			if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
				t.Fatalf("expected the handler error to pass through, got %v", err)
			}

			for _, kv := range apiHeaders {
				if got := rec.Header().Get(kv[0]); got != kv[1] {
					t.Errorf("%s: got %q, want %q", kv[0], got, kv[1])
				}
			}
			got := rec.Header().Get("Strict-Transport-Security")
			if tt.hsts && got != hstsValue {
				t.Errorf("expected HSTS, got %q", got)
			}
			if !tt.hsts && got != "" {
				t.Errorf("expected no HSTS, got %q", got)
			}
		})
	}
}
