package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
)

// Profile is a user without credentials.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName *string    `json:"display_name,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func ProfileOf(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	p := Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	return &p
}

// NewUser is an account about to be stored. Accounts start active unless
// Inactive is set.
type NewUser struct {
	Email        string
	PasswordHash string
	DisplayName  *string
	Inactive     bool
}

// Record builds the row with a fresh id, the normalized email and a blank
// display name dropped.
func (n NewUser) Record() *models.User {
	user := &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(n.Email),
		PasswordHash: n.PasswordHash,
		IsActive:     !n.Inactive,
	}
	if n.DisplayName != nil {
		if name := strings.TrimSpace(*n.DisplayName); name != "" {
			user.DisplayName = &name
		}
	}
	return user
}

// NormalizeEmail is the stored and looked up form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
