package controllers

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/internal/items"
)

// RequestIdentity resolves the signed in user from the context seeded by
// middleware.Auth.
type RequestIdentity struct{}

func (RequestIdentity) CurrentUser(ctx context.Context) (items.Identity, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return items.Identity{}, errors.New("no user in request context")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return items.Identity{}, err
	}
	return items.Identity{UserID: userID, Email: middleware.EmailFromContext(ctx)}, nil
}
