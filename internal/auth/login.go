package auth

import (
	"context"
	"errors"

	"github.com/angelmondragon/wardrobe-backend/internal/users"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/auth/session"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/security"
)

// Credentials is the login body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignIn is returned by a successful login or registration.
type SignIn struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.Profile `json:"user"`
}

// errBadCredentials is returned for unknown emails, wrong passwords and
// inactive accounts alike.
var errBadCredentials = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

func (s *service) Login(ctx context.Context, req Credentials) (*SignIn, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	s.upgradeHash(ctx, user, req.Password)

	accessID := session.NewAccessID()
	access, err := s.tokens.Mint(now, pkgAuth.Subject{UserID: user.ID, Email: user.Email, SessionID: accessID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.sessions.Start(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &SignIn{AccessToken: access, RefreshToken: refresh, User: users.ProfileOf(user)}, nil
}

func (s *service) authenticate(ctx context.Context, req Credentials) (*models.User, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, errBadCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive {
		return nil, errBadCredentials
	}
	return user, nil
}

// upgradeHash rewrites the stored hash when the argon2 cost changed. A failure
// is logged and the login goes on.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.password) {
		return
	}
	hash, err := security.HashPassword(password, s.password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "password rehash failed", err)
		}
		return
	}
	user.PasswordHash = hash
}
