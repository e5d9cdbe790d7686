package controllers

import (
	"net/http"

	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/api/validators"
	"github.com/angelmondragon/wardrobe-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeDependency, "auth service unavailable")

// AuthLogin exchanges credentials for an access and a refresh token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		if !decodeFor(w, r, svc, &creds, logg) {
			return
		}
		signIn(w, r, svc, creds, http.StatusOK, logg)
	}
}

// AuthRegister creates the account, then signs it in.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg auth.Registration
		if !decodeFor(w, r, svc, &reg, logg) {
			return
		}
		if _, err := svc.Register(r.Context(), reg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		signIn(w, r, svc, auth.Credentials{Email: reg.Email, Password: reg.Password}, http.StatusCreated, logg)
	}
}

// decodeFor reads the body into dst and reports whether the handler may go on.
func decodeFor(w http.ResponseWriter, r *http.Request, svc auth.Service, dst any, logg *logger.Logger) bool {
	var err error = errAuthUnavailable
	if svc != nil {
		err = validators.DecodeJSONBody(r, dst)
	}
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return false
	}
	return true
}

func signIn(w http.ResponseWriter, r *http.Request, svc auth.Service, creds auth.Credentials, status int, logg *logger.Logger) {
	result, err := svc.Login(r.Context(), creds)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	w.Header().Set(middleware.AccessTokenHeader, result.AccessToken)
	responses.WriteSuccessStatus(w, status, result)
}
