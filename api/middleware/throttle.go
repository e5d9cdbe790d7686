package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

type windowCounter interface {
	Hit(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// Throttle limits one unauthenticated surface per client IP and per
// submitted email. A zero limit disables that dimension.
type Throttle struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func LoginThrottle(cfg config.AuthRateLimitConfig) Throttle {
	return Throttle{Name: "login", Window: cfg.LoginWindow, PerIP: cfg.LoginIPLimit, PerEmail: cfg.LoginEmailLimit}
}

func RegisterThrottle(cfg config.AuthRateLimitConfig) Throttle {
	return Throttle{Name: "register", Window: cfg.RegisterWindow, PerIP: cfg.RegisterIPLimit, PerEmail: cfg.RegisterEmailLimit}
}

func (t Throttle) active() bool {
	return t.Window > 0 && (t.PerIP > 0 || t.PerEmail > 0)
}

// AuthRateLimit applies t before the handler. Counter failures are reported
// as a dependency error.
func AuthRateLimit(t Throttle, counter windowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || !t.active() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if t.PerIP > 0 {
				ip := clientIP(r)
				win, err := counter.Hit(ctx, "auth:"+t.Name+":ip:"+ip, int64(t.PerIP), t.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !win.Allowed() {
					tooMany(ctx, logg, w, win, map[string]any{"throttle": t.Name, "dimension": "ip", "ip": ip})
					return
				}
			}

			if t.PerEmail > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if digest := emailDigest(body); digest != "" {
					win, err := counter.Hit(ctx, "auth:"+t.Name+":email:"+digest, int64(t.PerEmail), t.Window)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
						return
					}
					if !win.Allowed() {
						tooMany(ctx, logg, w, win, map[string]any{"throttle": t.Name, "dimension": "email", "email_hash": digest})
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit caps authenticated traffic per user in a fixed window. Requests
// without a user fall back to the client IP. Counter errors let traffic
// through.
func RateLimit(counter windowCounter, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := "api:ip:" + clientIP(r)
			if userID := UserIDFromContext(r.Context()); userID != "" {
				scope = "api:user:" + userID
			}
			win, err := counter.Hit(r.Context(), scope, limit, window)
			if err != nil {
				logError(r.Context(), logg, "rate limit check failed", err)
				next.ServeHTTP(w, r)
				return
			}
			if !win.Allowed() {
				tooMany(r.Context(), logg, w, win, map[string]any{"scope": scope})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tooMany(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, win redis.Window, fields map[string]any) {
	retry := int(math.Ceil(win.ResetIn.Seconds()))
	if retry < 1 {
		retry = 1
	}
	if logg != nil {
		fields["count"] = win.Count
		fields["limit"] = win.Limit
		fields["retry_after"] = retry
		logg.Warn(logg.WithFields(ctx, fields), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests").
		WithDetails(map[string]any{"limit": win.Limit, "retry_after_seconds": retry}))
}

// emailDigest hashes the normalized "email" field of a JSON body so raw
// addresses never reach redis keys or logs.
func emailDigest(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:12])
}
