package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

// ItemCreatedEvent is emitted once an item and all of its photo rows commit.
type ItemCreatedEvent struct {
	ItemID         uuid.UUID          `json:"item_id"`
	OwnerID        uuid.UUID          `json:"owner_id"`
	Category       enums.ItemCategory `json:"category"`
	CoverImagePath string             `json:"cover_image_path"`
	ImagePaths     []string           `json:"image_paths"`
}

// ItemUpdatedEvent is emitted for every committed edit, including
// metadata-only edits where AppendedPaths is empty.
type ItemUpdatedEvent struct {
	ItemID         uuid.UUID          `json:"item_id"`
	OwnerID        uuid.UUID          `json:"owner_id"`
	Category       enums.ItemCategory `json:"category"`
	CoverImagePath string             `json:"cover_image_path"`
	AppendedPaths  []string           `json:"appended_paths"`
	FirstSortOrder int                `json:"first_sort_order"`
}

// ItemDeletedEvent carries every blob path the item referenced at deletion
// time so downstream workers can reclaim storage.
type ItemDeletedEvent struct {
	ItemID     uuid.UUID `json:"item_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	ImagePaths []string  `json:"image_paths"`
}
