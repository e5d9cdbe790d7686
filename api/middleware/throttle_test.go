package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	scopes []string
	err    error
}

func (f *fakeCounter) Hit(_ context.Context, scope string, limit int64, window time.Duration) (redis.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.Window{}, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	f.scopes = append(f.scopes, scope)
	return redis.Window{Count: f.counts[scope], Limit: limit, ResetIn: window / 2}, nil
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func loginRequest(email, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"closet-secret"}`))
	req.RemoteAddr = addr
	return req
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	counter := &fakeCounter{}
	handler := AuthRateLimit(Throttle{Name: "login", Window: time.Minute, PerIP: 5, PerEmail: 5}, counter, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), `"email":"Sam@Example.com"`)
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("Sam@Example.com", "10.0.0.1:4000"))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, counter.scopes, 2)
	assert.Equal(t, "auth:login:ip:10.0.0.1", counter.scopes[0])
	assert.True(t, strings.HasPrefix(counter.scopes[1], "auth:login:email:"))
	assert.NotContains(t, counter.scopes[1], "example", "raw email must not appear in keys")
}

func TestAuthRateLimitDimensions(t *testing.T) {
	cases := []struct {
		name     string
		throttle Throttle
		requests []*http.Request
		want     []int
	}{
		{
			name:     "email limit ignores case and ip",
			throttle: Throttle{Name: "login", Window: time.Minute, PerEmail: 2},
			requests: []*http.Request{
				loginRequest("sam@example.com", "10.0.0.1:1"),
				loginRequest(" SAM@example.com", "10.0.0.2:1"),
				loginRequest("sam@example.com", "10.0.0.3:1"),
			},
			want: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:     "ip limit",
			throttle: Throttle{Name: "register", Window: time.Minute, PerIP: 1},
			requests: []*http.Request{
				loginRequest("a@example.com", "10.0.0.9:1"),
				loginRequest("b@example.com", "10.0.0.9:2"),
			},
			want: []int{http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:     "disabled",
			throttle: Throttle{Name: "login", PerIP: 1},
			requests: []*http.Request{loginRequest("a@example.com", "1.1.1.1:1"), loginRequest("a@example.com", "1.1.1.1:1")},
			want:     []int{http.StatusOK, http.StatusOK},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthRateLimit(tc.throttle, &fakeCounter{}, nil)(http.HandlerFunc(okHandler))
			for i, req := range tc.requests {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				require.Equal(t, tc.want[i], rec.Code, "request %d", i)
				if rec.Code == http.StatusTooManyRequests {
					assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, rec.Body.Bytes()))
					assert.Equal(t, "30", rec.Header().Get("Retry-After"))
				}
			}
		})
	}
}

func TestAuthRateLimitCounterFailure(t *testing.T) {
	handler := AuthRateLimit(Throttle{Name: "login", Window: time.Minute, PerIP: 1}, &fakeCounter{err: errors.New("redis down")}, nil)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("a@example.com", "1.1.1.1:1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestThrottlesFromConfig(t *testing.T) {
	cfg := config.AuthRateLimitConfig{LoginWindow: time.Minute, LoginIPLimit: 20, LoginEmailLimit: 5, RegisterWindow: 5 * time.Minute, RegisterIPLimit: 10, RegisterEmailLimit: 3}
	assert.Equal(t, Throttle{Name: "login", Window: time.Minute, PerIP: 20, PerEmail: 5}, LoginThrottle(cfg))
	assert.Equal(t, Throttle{Name: "register", Window: 5 * time.Minute, PerIP: 10, PerEmail: 3}, RegisterThrottle(cfg))
}

func TestRateLimitPerUser(t *testing.T) {
	counter := &fakeCounter{}
	handler := RateLimit(counter, 2, time.Minute, nil)(http.HandlerFunc(okHandler))

	var codes []int
	for _, user := range []string{"u1", "u1", "u1", "u2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusOK}, codes)
	assert.Equal(t, "api:user:u1", counter.scopes[0])
}

func TestRateLimitFallsBackToIPAndFailsOpen(t *testing.T) {
	counter := &fakeCounter{}
	req := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	RateLimit(counter, 5, time.Minute, nil)(http.HandlerFunc(okHandler)).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, []string{"api:ip:203.0.113.7"}, counter.scopes)

	rec := httptest.NewRecorder()
	RateLimit(&fakeCounter{err: errors.New("redis down")}, 1, time.Minute, nil)(http.HandlerFunc(okHandler)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
