package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

type tokenVerifier interface {
	Verify(raw string) (*pkgAuth.Claims, error)
}

type sessionChecker interface {
	Active(ctx context.Context, accessID string) (bool, error)
}

// Auth admits requests carrying a valid access token whose session is still
// live. A nil sessions skips the session lookup.
func Auth(tokens tokenVerifier, sessions sessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if tokens == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token verifier unavailable"))
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if sessions != nil {
				live, err := sessions.Active(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := withPrincipal(r.Context(), principal{userID: claims.UserID.String(), email: claims.Email})
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
