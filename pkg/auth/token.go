// Package auth mints and verifies the HS256 access tokens the API accepts.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
)

// Subject is who an access token speaks for. SessionID becomes the jti and
// keys the refresh session.
type Subject struct {
	UserID    uuid.UUID
	Email     string
	SessionID string
}

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() Subject {
	return Subject{UserID: c.UserID, Email: c.Email, SessionID: c.ID}
}

// Tokens holds the signing key and the two parsers built from one JWTConfig.
type Tokens struct {
	key     []byte
	issuer  string
	ttl     time.Duration
	strict  *jwt.Parser
	lenient *jwt.Parser
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	issuer := jwt.WithIssuer(cfg.Issuer)
	return &Tokens{
		key:     []byte(cfg.Secret),
		issuer:  cfg.Issuer,
		ttl:     time.Duration(cfg.ExpirationMinutes) * time.Minute,
		strict:  jwt.NewParser(methods, issuer, jwt.WithIssuedAt()),
		lenient: jwt.NewParser(methods, issuer, jwt.WithoutClaimsValidation()),
	}, nil
}

// TTL is the lifetime of minted tokens.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Mint signs a token for s valid from now. A blank SessionID gets a fresh one.
func (t *Tokens) Mint(now time.Time, s Subject) (string, error) {
	if s.UserID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	jti := strings.TrimSpace(s.SessionID)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := Claims{
		UserID: s.UserID,
		Email:  strings.ToLower(strings.TrimSpace(s.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    t.issuer,
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	return t.parse(t.strict, raw)
}

// Inspect checks signature and issuer but accepts expired tokens, so logout
// and refresh can still read the session id.
func (t *Tokens) Inspect(raw string) (*Claims, error) {
	return t.parse(t.lenient, raw)
}

func (t *Tokens) parse(p *jwt.Parser, raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := p.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return t.key, nil }); err != nil {
		return nil, err
	}
	// the lenient parser skips every registered claim check
	if claims.Issuer != t.issuer {
		return nil, errors.New("token issuer mismatch")
	}
	if claims.ID == "" {
		return nil, errors.New("token has no session id")
	}
	return claims, nil
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const scheme = "bearer"
	header = strings.TrimSpace(header)
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) &&
		(len(header) == len(scheme) || header[len(scheme)] == ' ') {
		header = strings.TrimSpace(header[len(scheme):])
	}
	return header, header != ""
}
