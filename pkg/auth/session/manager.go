// Package session keeps the refresh token of every live access token.
// A session is keyed by the access token's jti and lives as long as the
// refresh token.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

var errNoAccessID = errors.New("access id is required")

type store interface {
	PutSession(ctx context.Context, accessID, refresh string, ttl time.Duration) error
	SessionToken(ctx context.Context, accessID string) (string, bool, error)
	DropSession(ctx context.Context, accessID string) error
}

type Manager struct {
	store store
	ttl   time.Duration
}

// NewManager requires the refresh lifetime to outlast the access token.
// *pkg/redis.Client satisfies store.
func NewManager(s store, cfg config.JWTConfig) (*Manager, error) {
	if s == nil {
		return nil, errors.New("session store is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= access {
		return nil, fmt.Errorf("refresh ttl %s must exceed access ttl %s", ttl, access)
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string { return uuid.NewString() }

// Start opens a session for accessID and returns its refresh token.
func (m *Manager) Start(ctx context.Context, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errNoAccessID
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.store.PutSession(ctx, accessID, refresh, m.ttl); err != nil {
		return "", err
	}
	return refresh, nil
}

// Rotate trades a valid refresh token for a new session. The old session is
// dropped before the new one is written so a refresh token works once.
func (m *Manager) Rotate(ctx context.Context, accessID, presented string) (string, string, error) {
	if strings.TrimSpace(accessID) == "" || presented == "" {
		return "", "", ErrInvalidRefreshToken
	}
	stored, ok, err := m.store.SessionToken(ctx, accessID)
	if err != nil {
		return "", "", err
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.store.DropSession(ctx, accessID); err != nil {
		return "", "", err
	}
	next := NewAccessID()
	refresh, err := m.Start(ctx, next)
	if err != nil {
		return "", "", err
	}
	return next, refresh, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errNoAccessID
	}
	return m.store.DropSession(ctx, accessID)
}

// Active reports whether accessID still has a refresh session.
func (m *Manager) Active(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errNoAccessID
	}
	_, ok, err := m.store.SessionToken(ctx, accessID)
	return ok, err
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
