package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when another account already holds the email.
	ErrEmailTaken = errors.New("email already registered")
)

// Repository is the gorm store for accounts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the account. A concurrent registration of the same email
// surfaces as ErrEmailTaken through the unique index.
func (r *Repository) Create(ctx context.Context, n NewUser) (*models.User, error) {
	user := n.Record()
	err := r.db.WithContext(ctx).Create(user).Error
	switch {
	case db.IsUniqueViolation(err, ""):
		return nil, ErrEmailTaken
	case err != nil:
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.set(ctx, id, "last_login_at", at)
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.set(ctx, id, "password_hash", hash)
}

func (r *Repository) first(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(where, arg).First(&user).Error
	if db.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// set writes one column without touching updated_at.
func (r *Repository) set(ctx context.Context, id uuid.UUID, column string, value any) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn(column, value).Error
}
