package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"teamleave/internal/domain/auth"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

type hit struct {
	method, path, remote, body, userID string
}

func (h hit) request() *http.Request {
	method := h.method
	if method == "" {
		method = http.MethodPost
	}
	req := httptest.NewRequest(method, h.path, strings.NewReader(h.body))
	if h.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.remote != "" {
		req.RemoteAddr = h.remote
	}
	if h.userID != "" {
		req = req.WithContext(WithUser(context.Background(), auth.UserContext{TeamID: "team-1", UserID: h.userID}))
	}
	return req
}

func serve(t *testing.T, handler http.Handler, h hit) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, h.request())
	return rec
}

func TestRateLimitKeys(t *testing.T) {
	tests := []struct {
		name          string
		first, second hit
		wantSecond    int
	}{
		{
			name:       "same user from two addresses",
			first:      hit{path: "/api/v1/leave/requests/r1/approve", remote: "198.51.100.11:2222", userID: "user-1"},
			second:     hit{path: "/api/v1/leave/requests/r1/approve", remote: "198.51.100.12:3333", userID: "user-1"},
			wantSecond: http.StatusTooManyRequests,
		},
		{
			name:       "anonymous callers share their ip",
			first:      hit{path: "/api/v1/auth/login", remote: "203.0.113.10:4444", body: `{"email":"a@example.com"}`},
			second:     hit{path: "/api/v1/auth/login", remote: "203.0.113.10:5555", body: `{"email":"b@example.com"}`},
			wantSecond: http.StatusTooManyRequests,
		},
		{
			name:       "different users",
			first:      hit{path: "/api/v1/leave/requests", userID: "user-1"},
			second:     hit{path: "/api/v1/leave/requests", userID: "user-2"},
			wantSecond: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limited := RateLimit(1, time.Minute)(noContent)
			if rec := serve(t, limited, tt.first); rec.Code != http.StatusNoContent {
				t.Fatalf("expected first request to pass, got %d", rec.Code)
			}
			if rec := serve(t, limited, tt.second); rec.Code != tt.wantSecond {
				t.Fatalf("expected %d for second request, got %d", tt.wantSecond, rec.Code)
			}
		})
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, time.Minute, nil)
	rl.now = func() time.Time { return now }

	if _, _, ok := rl.take("user:a"); !ok {
		t.Fatal("expected first hit to pass")
	}
	remaining, resetIn, ok := rl.take("user:a")
	if ok || remaining != -1 || resetIn != time.Minute {
		t.Fatalf("expected throttle with a full window left, got remaining=%d reset=%v ok=%v", remaining, resetIn, ok)
	}

	now = now.Add(61 * time.Second)
	if _, _, ok := rl.take("user:a"); !ok {
		t.Fatal("expected hit after window reset to pass")
	}
}

func TestRateLimitReturnsRetryMetadata(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent)
	login := hit{path: "/api/v1/auth/login", remote: "192.0.2.30:1234", body: `{"email":"a@example.com"}`}

	serve(t, limited, login)
	rec := serve(t, limited, login)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled response, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected no remaining budget, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestSensitiveMutationRateLimitBudgets(t *testing.T) {
	tests := []struct {
		name      string
		baseLimit int
		req       hit
		allowed   int
	}{
		{"reads bypass", 4, hit{method: http.MethodGet, path: "/api/v1/leave/calendar", remote: "198.51.100.40:8888"}, 6},
		{"approve gets half", 4, hit{path: "/api/v1/leave/requests/r1/approve", userID: "lead-1"}, 2},
		{"override gets a quarter", 8, hit{path: "/api/v1/leave/requests/r1/override", userID: "lead-1"}, 2},
		{"policy update gets half", 4, hit{method: http.MethodPut, path: "/api/v1/teams/t1/policy", userID: "lead-1"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limited := SensitiveMutationRateLimit(tt.baseLimit, time.Minute)(noContent)
			for i := 0; i < tt.allowed; i++ {
				if rec := serve(t, limited, tt.req); rec.Code != http.StatusNoContent {
					t.Fatalf("expected request %d to pass, got %d", i+1, rec.Code)
				}
			}
			if tt.req.method == http.MethodGet {
				return
			}
			if rec := serve(t, limited, tt.req); rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected request %d to be throttled, got %d", tt.allowed+1, rec.Code)
			}
		})
	}
}

func TestAuthEmailKeyRestoresBody(t *testing.T) {
	req := hit{path: "/api/v1/auth/login", body: `{"email":" Lead@Example.com "}`}.request()
	if key := AuthEmailOrIPKey("email")(req); key != "email:lead@example.com" {
		t.Fatalf("unexpected key %q", key)
	}
	var buf strings.Builder
	if _, err := buf.ReadFrom(req.Body); err != nil || !strings.Contains(buf.String(), "Lead@Example.com") {
		t.Fatalf("expected body to be readable again, got %q err=%v", buf.String(), err)
	}
}

func TestSensitiveRateScope(t *testing.T) {
	tests := []struct {
		method, path string
		want         sensitiveScope
	}{
		{http.MethodGet, "/api/v1/leave/requests/r1", sensitiveScopeNone},
		{http.MethodPost, "/api/v1/auth/login", sensitiveScopeAuth},
		{http.MethodPost, "/api/v1/leave/requests/r1/approve", sensitiveScopeActor},
		{http.MethodPost, "/api/v1/leave/requests/r1/reject", sensitiveScopeActor},
		{http.MethodPost, "/api/v1/leave/requests/r1/override", sensitiveScopeCredential},
		{http.MethodPost, "/api/v1/leave/carry-over/run", sensitiveScopeActor},
		{http.MethodPut, "/api/v1/teams/t1/policy", sensitiveScopeActor},
		{http.MethodPost, "/api/v1/leave/requests", sensitiveScopeNone},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if got := sensitiveRateScope(req); got != tt.want {
			t.Fatalf("%s %s: expected %q, got %q", tt.method, tt.path, tt.want, got)
		}
	}
}
