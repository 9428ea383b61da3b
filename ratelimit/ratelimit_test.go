package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow_WithinLimit(t *testing.T) {
	rl := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d unexpectedly rejected", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("request over limit unexpectedly allowed")
	}
}

func TestAllow_PerIPIsolation(t *testing.T) {
	rl := New(1, time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("first IP rejected")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("second IP should have its own bucket")
	}
}

func TestAllow_WindowReset(t *testing.T) {
	rl := New(1, 10*time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("first request rejected")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("second request should be rejected before window reset")
	}
	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("request after window reset rejected")
	}
}

func TestClientIP_DirectConnectionIgnoresHeaders(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:1234"
	r.Header.Set("X-Forwarded-For", "9.9.9.9")
	if got := ClientIP(r); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want %q", got, "203.0.113.9")
	}
}

func TestClientIP_TrustedProxyUsesForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := ClientIP(r); got != "198.51.100.7" {
		t.Errorf("ClientIP = %q, want %q", got, "198.51.100.7")
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	rl := New(1, time.Minute)
	h := Middleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))

	req := httptest.NewRequest("GET", "/api/search/viral-videos", nil)
	req.RemoteAddr = "203.0.113.9:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 429 {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429")
	}
}
