package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"teamleave/internal/transport/http/api"
	"teamleave/internal/transport/http/shared"
)

// sweepThreshold bounds how many idle buckets a limiter keeps before it
// drops expired ones.
const sweepThreshold = 4096

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type rateBucket struct {
	count int
	reset time.Time
}

// rateLimiter is a fixed-window counter per key.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	keyFn   RateLimitKeyFunc
	now     func() time.Time
	buckets map[string]*rateBucket
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		now:     time.Now,
		buckets: map[string]*rateBucket{},
	}
}

// RateLimit applies one budget per caller to every request it wraps.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return limitWith(func(*http.Request) []*rateLimiter { return []*rateLimiter{rl} })
}

// SensitiveMutationRateLimit adds tighter budgets on top of RateLimit for
// login, leave decisions, team settings and the password-checked override.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	credentialLimit := max(baseLimit/4, 1)
	decisionLimit := max(baseLimit/2, 1)
	byScope := map[sensitiveScope][]*rateLimiter{
		sensitiveScopeAuth: {
			newRateLimiter(credentialLimit, window, clientIPKey),
			newRateLimiter(credentialLimit, window, AuthEmailOrIPKey("email")),
		},
		sensitiveScopeActor: {
			newRateLimiter(decisionLimit, window, actorOrIPKey),
		},
		sensitiveScopeCredential: {
			newRateLimiter(credentialLimit, window, actorOrIPKey),
		},
	}
	return limitWith(func(r *http.Request) []*rateLimiter { return byScope[sensitiveRateScope(r)] })
}

func limitWith(pick func(*http.Request) []*rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, rl := range pick(r) {
				if !rl.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey keys login attempts by the email in the JSON body so one
// address cannot be sprayed from many IPs.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		if email := peekJSONField(r, field); email != "" {
			return "email:" + strings.ToLower(email)
		}
		return clientIPKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

// take counts one hit for key and reports what is left of its window.
func (rl *rateLimiter) take(key string) (remaining int, resetIn time.Duration, allowed bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.buckets) >= sweepThreshold {
		for k, b := range rl.buckets {
			if now.After(b.reset) {
				delete(rl.buckets, k)
			}
		}
	}
	bucket, ok := rl.buckets[key]
	if !ok || now.After(bucket.reset) {
		bucket = &rateBucket{reset: now.Add(rl.window)}
		rl.buckets[key] = bucket
	}
	bucket.count++
	return rl.limit - bucket.count, bucket.reset.Sub(now), bucket.count <= rl.limit
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	remaining, resetIn, allowed := rl.take(key)
	resetSec := ceilSeconds(resetIn)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if allowed {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetSec, 1)))
	slog.Warn("rate limit exceeded",
		"key", key,
		"method", r.Method,
		"path", r.URL.Path,
		"limit", rl.limit,
		"windowSec", int(rl.window.Seconds()),
		"requestId", GetRequestID(r.Context()),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// peekJSONField reads a string field from a JSON body and restores the body
// for the handler.
func peekJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone       sensitiveScope = ""
	sensitiveScopeAuth       sensitiveScope = "auth"
	sensitiveScopeActor      sensitiveScope = "actor"
	sensitiveScopeCredential sensitiveScope = "credential"
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil {
		return sensitiveScopeNone
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimPrefix(strings.TrimSpace(r.URL.Path), "/api/v1")
	switch {
	case path == "/auth/login":
		return sensitiveScopeAuth
	case path == "/leave/carry-over/run":
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/leave/requests/") && strings.HasSuffix(path, "/override"):
		// A re-entered password is checked here, so it gets the login budget.
		return sensitiveScopeCredential
	case strings.HasPrefix(path, "/leave/requests/") &&
		(strings.HasSuffix(path, "/approve") || strings.HasSuffix(path, "/reject")):
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/teams/") && r.Method == http.MethodPut:
		return sensitiveScopeActor
	}
	return sensitiveScopeNone
}
