package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// Item is a single wardrobe garment. CoverImagePath references one of the
// item's photo paths once photos exist.
type Item struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID        uuid.UUID          `gorm:"column:owner_id;type:uuid;not null;index"`
	CoverImagePath string             `gorm:"column:cover_image_path;not null"`
	Category       enums.ItemCategory `gorm:"column:type;type:text;not null"`
	Color          *string            `gorm:"column:color"`
	Brand          *string            `gorm:"column:brand"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }

// ItemPhoto is one ordered image of an item.
type ItemPhoto struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:item_photos_item_sort_key,priority:1"`
	ImagePath string    `gorm:"column:image_path;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;uniqueIndex:item_photos_item_sort_key,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ItemPhoto) TableName() string { return "item_photos" }
