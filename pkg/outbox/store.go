package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

const maxErrorLen = 1024

var errNoTx = errors.New("transaction required")

// Store reads and writes outbox_events and outbox_dlq. Write methods take the
// caller's transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&row).Error
}

// Claim returns up to limit unpublished rows with attempts left, oldest
// first. On postgres the rows stay locked for the transaction and concurrent
// relays skip them.
func (s *Store) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	q := tx.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit)
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
	}
	var rows []models.OutboxEvent
	return rows, q.Find(&rows).Error
}

func (s *Store) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return s.update(tx, id, map[string]any{
		"published_at": time.Now().UTC(),
		"last_error":   nil,
	})
}

// MarkFailed counts one more failed attempt.
func (s *Store) MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error {
	return s.update(tx, id, map[string]any{
		"last_error":    clip(cause.Error()),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// DeadLetter copies row into outbox_dlq and parks it at parkAt attempts so
// Claim never returns it again.
func (s *Store) DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.DLQReason, cause error, parkAt int) error {
	if tx == nil {
		return errNoTx
	}
	msg := clip(cause.Error())
	entry := row.Park(reason, msg, time.Now())
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	return s.update(tx, row.ID, map[string]any{
		"last_error":    msg,
		"attempt_count": parkAt,
	})
}

// DeadLetterFor returns the DLQ entry of eventID, or nil when there is none.
func (s *Store) DeadLetterFor(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeadLetters lists the newest DLQ entries.
func (s *Store) DeadLetters(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := s.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *Store) update(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values).Error
}

func clip(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
