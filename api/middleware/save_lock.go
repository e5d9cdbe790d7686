package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// FormIDHeader names the client form instance a save belongs to.
const FormIDHeader = "X-Form-Id"

type saveLocker interface {
	Lock(ctx context.Context, scope, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, scope, token string) error
}

// SaveLock admits one in-flight save per user, route, item and form. A second
// submission while the first is running gets a conflict.
func SaveLock(locker saveLocker, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if locker == nil || ttl <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope, token := saveScope(r), uuid.NewString()

			held, err := locker.Lock(ctx, scope, token, ttl)
			switch {
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire save lock"))
				return
			case !held:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a save is already in progress"))
				return
			}
			defer func() {
				logError(ctx, logg, "release save lock", locker.Unlock(context.WithoutCancel(ctx), scope, token))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func saveScope(r *http.Request) string {
	itemID := "new"
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if id := rc.URLParam("itemId"); id != "" {
			itemID = id
		}
	}
	formID := strings.TrimSpace(r.Header.Get(FormIDHeader))
	if formID == "" {
		formID = "default"
	}
	return "save|" + strings.Join([]string{UserIDFromContext(r.Context()), r.Method, routePattern(r), itemID, formID}, "|")
}
