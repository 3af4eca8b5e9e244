package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, rate float64, burst int) (*RateLimiter, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := NewRateLimiter(ctx, rate, burst)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterBurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(t, 2, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be within burst", i)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatalf("expected request beyond burst to be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatalf("other clients have their own bucket")
	}

	*now = now.Add(500 * time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Fatalf("expected one token after refill")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatalf("expected bucket to be empty again")
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 1)
	rl.Allow("old")
	*now = now.Add(time.Hour)
	rl.Allow("fresh")

	if n := rl.Prune(now.Add(-time.Minute)); n != 1 {
		t.Fatalf("expected 1 pruned bucket, got %d", n)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 0, 1)
	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/sessions/a/state", nil)
		req.Header.Set("X-Real-Ip", "9.9.9.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	called := false
	handler := RateLimit(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("expected handler to run")
	}
}

func TestClientIPStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := clientIP(req); got != "10.0.0.7" {
		t.Fatalf("expected host without port, got %q", got)
	}
	req.Header.Set("X-Real-Ip", "203.0.113.9")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected X-Real-Ip to win, got %q", got)
	}
}
