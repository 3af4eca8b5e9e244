package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantHandler bool
	}{
		{"listed origin", []string{"https://dash.example/"}, http.MethodGet, "https://dash.example", false, http.StatusOK, "https://dash.example", true},
		{"unlisted origin still served", []string{"https://dash.example"}, http.MethodGet, "https://other.example", false, http.StatusOK, "", true},
		{"wildcard echoes origin", []string{"*"}, http.MethodPost, "https://anywhere.example", false, http.StatusOK, "https://anywhere.example", true},
		{"no origin header", []string{"*"}, http.MethodGet, "", false, http.StatusOK, "", true},
		{"preflight allowed", []string{"https://dash.example"}, http.MethodOptions, "https://dash.example", true, http.StatusNoContent, "https://dash.example", false},
		{"preflight rejected", []string{"https://dash.example"}, http.MethodOptions, "https://evil.example", true, http.StatusForbidden, "", false},
		{"plain options passes through", []string{"*"}, http.MethodOptions, "https://dash.example", false, http.StatusOK, "https://dash.example", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, "/sessions/s1/turns", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if called != tc.wantHandler {
				t.Fatalf("handler called = %v, want %v", called, tc.wantHandler)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tc.wantOrigin, got)
			}
			if tc.wantOrigin != "" {
				if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Session-ID") {
					t.Fatalf("expected session header to be allowed, got %q", got)
				}
				if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodDelete) {
					t.Fatalf("expected DELETE to be allowed, got %q", got)
				}
			}
		})
	}
}
