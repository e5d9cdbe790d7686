package auth

import (
	"context"
	"errors"
	"net/mail"
	"unicode/utf8"

	"github.com/angelmondragon/wardrobe-backend/internal/users"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/security"
)

const minPasswordLength = 8

// Registration is the sign up body.
type Registration struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required"`
	DisplayName *string `json:"display_name,omitempty"`
}

var errEmailTaken = pkgerrors.New(pkgerrors.CodeConflict, "email already registered")

func (s *service) Register(ctx context.Context, req Registration) (*users.Profile, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	switch _, err := s.users.FindByEmail(ctx, email); {
	case err == nil:
		return nil, errEmailTaken
	case !errors.Is(err, users.ErrUserNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	hash, err := security.HashPassword(req.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.NewUser{Email: email, PasswordHash: hash, DisplayName: req.DisplayName})
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		return nil, errEmailTaken
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return users.ProfileOf(user), nil
}
