package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sanghsetu/sanghsetu/internal/app/system/ratelimit"
)

func TestAllowWithinWindow(t *testing.T) {
	l := ratelimit.New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d blocked inside the limit", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth request allowed past the limit")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other keys must not share the window")
	}
	if got := l.Remaining("10.0.0.1"); got != 0 {
		t.Errorf("remaining: got %d, want 0", got)
	}

	l.Reset("10.0.0.1")
	if !l.Allow("10.0.0.1") {
		t.Error("reset key still blocked")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:4411"
	if got := ratelimit.ClientIP(r); got != "192.0.2.7" {
		t.Errorf("remote addr: got %q", got)
	}

	r.Header.Set("X-Real-IP", "198.51.100.9")
	if got := ratelimit.ClientIP(r); got != "198.51.100.9" {
		t.Errorf("x-real-ip: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.4, 10.0.0.1")
	if got := ratelimit.ClientIP(r); got != "203.0.113.4" {
		t.Errorf("x-forwarded-for: got %q", got)
	}
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := ratelimit.Middleware(2, time.Minute)(next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "192.0.2.7:4411"
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.7:4411"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("no Retry-After hint")
	}
}
