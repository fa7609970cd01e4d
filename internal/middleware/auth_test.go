package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/R3E-Network/studio_layer/internal/app/services/auth"
	"github.com/R3E-Network/studio_layer/internal/httputil"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tokens
}

func echoClaims() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"user":     logger.GetUserID(r.Context()),
			"role":     logger.GetRole(r.Context()),
			"username": c.Username,
			"studio":   c.Studio,
		})
	})
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	tokens := newTokens(t)
	token, _, err := tokens.Issue("c1", "ana", "client", "bribiesca")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	h := NewAuthMiddleware(tokens, nil).Handler(echoClaims())

	req := httptest.NewRequest(http.MethodGet, "/studios/bribiesca/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user"] != "c1" || body["role"] != "client" || body["username"] != "ana" || body["studio"] != "bribiesca" {
		t.Fatalf("unexpected claims: %v", body)
	}
}

func TestAuthMiddlewareQueryToken(t *testing.T) {
	tokens := newTokens(t)
	token, _, _ := tokens.Issue("c1", "ana", "client", "s1")
	h := NewAuthMiddleware(tokens, nil).Handler(echoClaims())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?"+TokenQueryParam+"="+token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ws?"+TokenQueryParam+"="+token, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("query token must only apply to GET, got %d", rec.Code)
	}
}

func TestAuthMiddlewareAnonymousAndInvalid(t *testing.T) {
	tokens := newTokens(t)
	h := NewAuthMiddleware(tokens, nil).Handler(echoClaims())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("anonymous request should pass, got %d", rec.Code)
	}

	protected := NewAuthMiddleware(tokens, nil).Handler(RequireAuth(echoClaims()))
	other, _ := auth.NewTokens("other-secret", time.Hour)
	forged, _, _ := other.Issue("admin:x", "x", "admin", "s1")
	for name, header := range map[string]string{
		"garbage":    "Bearer not-a-token",
		"bad format": "Token abc",
		"empty":      "Bearer  ",
		"forged":     "Bearer " + forged,
	} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: public route should continue anonymously, got %d", name, rec.Code)
		}

		req = httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.Header.Set("Authorization", header)
		rec = httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: protected route expected 401, got %d", name, rec.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole("admin")(ok)

	cases := []struct {
		name   string
		claims *auth.Claims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"client", &auth.Claims{Role: "client"}, http.StatusForbidden},
		{"admin", &auth.Claims{Role: "admin"}, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.claims != nil {
			req = req.WithContext(WithClaims(req.Context(), tc.claims))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := NewCORSMiddleware([]string{"https://app.example.com", "https://*.studio.mx"}).Handler(next)

	cases := map[string]bool{
		"https://app.example.com":     true,
		"https://bribiesca.studio.mx": true,
		"https://evil.com":            false,
		"https://studio.mx.evil.com":  false,
	}
	for origin, allowed := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == origin
		if got != allowed {
			t.Errorf("%s: allowed=%v, want %v", origin, got, allowed)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes: %v", codes)
	}

	// A different user on the same address has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5001"
	req = req.WithContext(logger.WithUserID(req.Context(), "c9"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected separate bucket, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, 5, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.getLimiter("a")
	now = now.Add(DefaultIdleTimeout / 2)
	rl.getLimiter("b")
	now = now.Add(DefaultIdleTimeout/2 + time.Second)

	if removed := rl.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if rl.Size() != 1 {
		t.Fatalf("expected 1 limiter left, got %d", rl.Size())
	}

	if err := rl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rl.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestTracingPropagatesTraceID(t *testing.T) {
	var seen string
	h := NewTracingMiddleware(nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetTraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "trace-123" || rec.Header().Get(TraceHeader) != "trace-123" {
		t.Fatalf("trace id not propagated: seen=%q header=%q", seen, rec.Header().Get(TraceHeader))
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(TraceHeader) == "" {
		t.Fatal("expected generated trace id")
	}
}
