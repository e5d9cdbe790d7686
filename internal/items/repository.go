package items

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
)

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Repository is the gorm RecordStore.
type Repository struct {
	db     *gorm.DB
	events eventEmitter
}

// NewRepository binds the repository to db. events stores outbox rows in the
// same transaction as the item change.
func NewRepository(db *gorm.DB, events eventEmitter) *Repository {
	return &Repository{db: db, events: events}
}

func (r *Repository) Transact(ctx context.Context, fn func(w RecordWriter) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txWriter{tx: tx, events: r.events})
	})
}

func (r *Repository) FindItem(ctx context.Context, ownerID, itemID uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", itemID, ownerID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindOwnedItems loads the requested items that belong to ownerID. Missing or
// foreign ids are left out of the result.
func (r *Repository) FindOwnedItems(ctx context.Context, ownerID uuid.UUID, itemIDs []uuid.UUID) ([]models.Item, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, itemIDs).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListPhotos(ctx context.Context, itemID uuid.UUID) ([]models.ItemPhoto, error) {
	var rows []models.ItemPhoto
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("sort_order ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListItems(ctx context.Context, query ListQuery) ([]models.Item, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", query.OwnerID)
	if query.Cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}
	var rows []models.Item
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(query.Limit).
		Find(&rows).Error
	return rows, err
}

// DeleteItem removes the item and its photo rows and queues event in one
// transaction. Photo rows are deleted explicitly because sqlite schemas built
// by AutoMigrate carry no cascade.
func (r *Repository) DeleteItem(ctx context.Context, ownerID, itemID uuid.UUID, event outbox.DomainEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", itemID, ownerID).Delete(&models.Item{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}
		if err := tx.Where("item_id = ?", itemID).Delete(&models.ItemPhoto{}).Error; err != nil {
			return err
		}
		if r.events == nil {
			return nil
		}
		return r.events.Emit(ctx, tx, event)
	})
}

type txWriter struct {
	tx     *gorm.DB
	events eventEmitter
}

func (w *txWriter) InsertItem(ctx context.Context, item *models.Item) error {
	return w.tx.WithContext(ctx).Create(item).Error
}

func (w *txWriter) InsertPhotos(ctx context.Context, photos []models.ItemPhoto) error {
	if len(photos) == 0 {
		return nil
	}
	return w.tx.WithContext(ctx).Create(&photos).Error
}

// UpdateItem writes cover and metadata. Nil color or brand clears the column.
func (w *txWriter) UpdateItem(ctx context.Context, item *models.Item) error {
	res := w.tx.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND owner_id = ?", item.ID, item.OwnerID).
		Updates(map[string]any{
			"cover_image_path": item.CoverImagePath,
			"type":             item.Category,
			"color":            item.Color,
			"brand":            item.Brand,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (w *txWriter) MaxSortOrder(ctx context.Context, itemID uuid.UUID) (int, bool, error) {
	var maxOrder sql.NullInt64
	err := w.tx.WithContext(ctx).
		Model(&models.ItemPhoto{}).
		Where("item_id = ?", itemID).
		Select("MAX(sort_order)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, false, err
	}
	if !maxOrder.Valid {
		return 0, false, nil
	}
	return int(maxOrder.Int64), true, nil
}

func (w *txWriter) RecordEvent(ctx context.Context, event outbox.DomainEvent) error {
	if w.events == nil {
		return nil
	}
	return w.events.Emit(ctx, w.tx, event)
}
