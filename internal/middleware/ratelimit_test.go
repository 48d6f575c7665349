package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-users/internal/auth"
	"github.com/prn-tf/meridian-users/internal/config"
)

func newTestLimiter(t *testing.T, cfg config.RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(cfg, zerolog.Nop())
	t.Cleanup(rl.Stop)
	return rl
}

func doRequest(handler http.Handler, remoteAddr string, identity *auth.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.RemoteAddr = remoteAddr
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, BurstSize: 3})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		if rec := doRequest(handler, "10.0.0.1:1234", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.5, BurstSize: 1})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := doRequest(handler, "10.0.0.1:1234", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec := doRequest(handler, "10.0.0.1:1234", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("expected Retry-After 2 for a 0.5 req/s limit, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.5, BurstSize: 1})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := doRequest(handler, "10.0.0.1:1234", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := doRequest(handler, "10.0.0.1:1234", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the first client to be throttled, got %d", rec.Code)
	}

	// A different IP has its own bucket.
	if rec := doRequest(handler, "10.0.0.2:1234", nil); rec.Code != http.StatusOK {
		t.Errorf("expected a fresh client to pass, got %d", rec.Code)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("expected 2 tracked clients, got %d", rl.LimiterCount())
	}
}

func TestRateLimiter_AuthenticatedKeyedByUser(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.5, BurstSize: 1})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice := &auth.Identity{UserID: 1, Role: "user"}
	bob := &auth.Identity{UserID: 2, Role: "user"}

	// Same NAT address, different users: separate buckets.
	if rec := doRequest(handler, "10.0.0.1:1234", alice); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for alice, got %d", rec.Code)
	}
	if rec := doRequest(handler, "10.0.0.1:1234", bob); rec.Code != http.StatusOK {
		t.Errorf("expected bob to have a separate bucket, got %d", rec.Code)
	}
	if rec := doRequest(handler, "10.0.0.1:1234", alice); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected alice to be throttled, got %d", rec.Code)
	}
}

func TestRateLimiter_DisabledPassthrough(t *testing.T) {
	rl := newTestLimiter(t, config.RateLimitConfig{Enabled: false, RequestsPerSecond: 0.001, BurstSize: 1})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		if rec := doRequest(handler, "10.0.0.1:1234", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected passthrough, got %d", i+1, rec.Code)
		}
	}
	if rl.LimiterCount() != 0 {
		t.Errorf("expected no tracked clients while disabled, got %d", rl.LimiterCount())
	}
}
