package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// IdempotencyHeader carries the client-chosen key of a retry-safe request.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from a stored replay.
const ReplayedHeader = "Idempotent-Replayed"

const defaultReplayTTL = 24 * time.Hour

// replayable lists "METHOD pattern" pairs that honour IdempotencyHeader.
var replayable = map[string]bool{
	http.MethodPost + " /v1/auth/register":   true,
	http.MethodPost + " /v1/items":           true,
	http.MethodPatch + " /v1/items/{itemId}": true,
}

type replayStore interface {
	Replay(ctx context.Context, scope, key string) (string, bool, error)
	StoreReplay(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error)
}

type replayRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// Idempotency answers a repeated key with the first response recorded for it.
// A key reused with a different body is a conflict. Server errors are not
// recorded so the client can retry them.
func Idempotency(store replayStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !replayable[r.Method+" "+routePattern(r)] {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if key == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := digest(body)
			scope := replayScope(r)

			stored, found, err := store.Replay(ctx, scope, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				var rec replayRecord
				if err := json.Unmarshal([]byte(stored), &rec); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
					return
				}
				if rec.BodyHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
					return
				}
				rec.writeTo(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(replayRecord{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				BodyHash:    hash,
			})
			if err == nil {
				_, err = store.StoreReplay(context.WithoutCancel(ctx), scope, key, string(payload), ttl)
			}
			logError(ctx, logg, "record idempotent response", err)
		})
	}
}

func (rec replayRecord) writeTo(w http.ResponseWriter) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

// replayScope keeps keys private to a user and a concrete target.
func replayScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (c *responseCapture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
