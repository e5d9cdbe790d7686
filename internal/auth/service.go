// Package auth registers accounts and signs users in with an access JWT and
// a rotating refresh token.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/internal/users"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

type Service interface {
	Register(ctx context.Context, req Registration) (*users.Profile, error)
	Login(ctx context.Context, req Credentials) (*SignIn, error)
}

type userStore interface {
	Create(ctx context.Context, n users.NewUser) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionStarter interface {
	Start(ctx context.Context, accessID string) (string, error)
}

type tokenMinter interface {
	Mint(now time.Time, s pkgAuth.Subject) (string, error)
}

// ServiceParams wires a Service. Users, Sessions and Tokens are required.
type ServiceParams struct {
	Users    userStore
	Sessions sessionStarter
	Tokens   tokenMinter
	Password config.PasswordConfig
	Logger   *logger.Logger
}

type service struct {
	users    userStore
	sessions sessionStarter
	tokens   tokenMinter
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Users == nil:
		return nil, errors.New("auth: user store is required")
	case p.Sessions == nil:
		return nil, errors.New("auth: session starter is required")
	case p.Tokens == nil:
		return nil, errors.New("auth: token minter is required")
	}
	return &service{
		users:    p.Users,
		sessions: p.Sessions,
		tokens:   p.Tokens,
		password: p.Password,
		logg:     p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}
