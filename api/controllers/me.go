package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/internal/users"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Me returns the signed in user's profile.
func Me(repo userFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := RequestIdentity{}.CurrentUser(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "authentication required"))
			return
		}

		user, err := repo.FindByID(r.Context(), ident.UserID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user"))
			return
		}

		responses.WriteSuccess(w, users.ProfileOf(user))
	}
}
