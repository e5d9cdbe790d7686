package controllers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/api/validators"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/auth/session"
	"github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

type sessionRotator interface {
	Rotate(ctx context.Context, accessID, presented string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type tokenIssuer interface {
	Inspect(raw string) (*pkgAuth.Claims, error)
	Mint(now time.Time, s pkgAuth.Subject) (string, error)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// presentedClaims reads the bearer token without enforcing expiry; logout
// and refresh both accept an expired access token.
func presentedClaims(r *http.Request, tokens tokenIssuer) (*pkgAuth.Claims, error) {
	raw, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, errors.New(errors.CodeUnauthorized, "missing credentials")
	}
	claims, err := tokens.Inspect(raw)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid token")
	}
	return claims, nil
}

// AuthLogout drops the session behind the presented access token.
func AuthLogout(sessions sessionRotator, tokens tokenIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil || tokens == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}
		claims, err := presentedClaims(r, tokens)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sessions.Revoke(r.Context(), claims.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "revoke session"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthRefresh trades a refresh token for a new access and refresh pair.
func AuthRefresh(sessions sessionRotator, tokens tokenIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil || tokens == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}

		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		claims, err := presentedClaims(r, tokens)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		nextID, refresh, err := sessions.Rotate(r.Context(), claims.ID, body.RefreshToken)
		switch {
		case stderrors.Is(err, session.ErrInvalidRefreshToken):
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeUnauthorized, "invalid refresh token"))
			return
		case err != nil:
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "rotate session"))
			return
		}

		subject := claims.Principal()
		subject.SessionID = nextID
		access, err := tokens.Mint(time.Now().UTC(), subject)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeInternal, err, "mint jwt"))
			return
		}

		w.Header().Set(middleware.AccessTokenHeader, access)
		responses.WriteSuccess(w, refreshResponse{AccessToken: access, RefreshToken: refresh})
	}
}
