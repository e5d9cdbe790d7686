package items

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/pagination"
)

// ListParams is the page request for the wardrobe list.
type ListParams = pagination.Params

// ListQuery is handed to RecordStore.ListItems. Limit already includes the
// lookahead row.
type ListQuery struct {
	OwnerID uuid.UUID
	Cursor  *pagination.Cursor
	Limit   int
}

// ItemSummary is one wardrobe entry.
type ItemSummary struct {
	ID             uuid.UUID          `json:"id"`
	Category       enums.ItemCategory `json:"category"`
	Color          *string            `json:"color,omitempty"`
	Brand          *string            `json:"brand,omitempty"`
	CoverImagePath string             `json:"cover_image_path"`
	CoverURL       *string            `json:"cover_url"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Section groups summaries of one category.
type Section struct {
	Title string        `json:"title"`
	Items []ItemSummary `json:"items"`
}

// ListResult is one page of the wardrobe grouped into sections.
type ListResult struct {
	Sections []Section `json:"sections"`
	pagination.Page
}

// PhotoView is one photo of an item detail.
type PhotoView struct {
	ID        uuid.UUID `json:"id"`
	ImagePath string    `json:"image_path"`
	SortOrder int       `json:"sort_order"`
	URL       *string   `json:"url"`
}

// ItemDetail is an item with its ordered photos.
type ItemDetail struct {
	ItemSummary
	Photos []PhotoView `json:"photos"`
}

func (s *service) currentOwner(ctx context.Context) (uuid.UUID, error) {
	ident, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "could not resolve the signed in user")
	}
	if ident.UserID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "could not resolve the signed in user")
	}
	return ident.UserID, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	ownerID, err := s.currentOwner(ctx)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.records.ListItems(ctx, ListQuery{
		OwnerID: ownerID,
		Cursor:  cursor,
		Limit:   pagination.Fetch(limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}

	result := &ListResult{}
	rows, result.NextCursor = pagination.Trim(rows, limit, func(row models.Item) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})

	refs := make([]ImageRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, ImageRef{ID: row.ID, Path: row.CoverImagePath})
	}
	urls := collect(s.urls.SignedURLs(ctx, "list", refs))

	summaries := make([]ItemSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarize(row, urls))
	}
	result.Sections = GroupSections(summaries)
	return result, nil
}

func (s *service) Get(ctx context.Context, itemID uuid.UUID) (*ItemDetail, error) {
	ownerID, err := s.currentOwner(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.records.FindItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	photos, err := s.records.ListPhotos(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list photos")
	}
	recoverCover(item, photos)

	refs := make([]ImageRef, 0, len(photos)+1)
	refs = append(refs, ImageRef{ID: item.ID, Path: item.CoverImagePath})
	for _, photo := range photos {
		refs = append(refs, ImageRef{ID: photo.ID, Path: photo.ImagePath})
	}
	urls := collect(s.urls.SignedURLs(ctx, "detail", refs))

	detail := &ItemDetail{
		ItemSummary: summarize(*item, urls),
		Photos:      make([]PhotoView, 0, len(photos)),
	}
	for _, photo := range photos {
		view := PhotoView{ID: photo.ID, ImagePath: photo.ImagePath, SortOrder: photo.SortOrder}
		if u, ok := urls[photo.ID]; ok {
			view.URL = &u
		}
		detail.Photos = append(detail.Photos, view)
	}
	return detail, nil
}

// recoverCover points the cover at the lowest sort order photo when the
// stored cover is not one of the item's photos. photos must be sorted.
func recoverCover(item *models.Item, photos []models.ItemPhoto) bool {
	if len(photos) == 0 {
		return false
	}
	for _, photo := range photos {
		if photo.ImagePath == item.CoverImagePath {
			return false
		}
	}
	item.CoverImagePath = photos[0].ImagePath
	return true
}

func summarize(item models.Item, urls map[uuid.UUID]string) ItemSummary {
	summary := ItemSummary{
		ID:             item.ID,
		Category:       item.Category,
		Color:          item.Color,
		Brand:          item.Brand,
		CoverImagePath: item.CoverImagePath,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
	if u, ok := urls[item.ID]; ok {
		summary.CoverURL = &u
	}
	return summary
}

// GroupSections buckets summaries by category in section order, then Other.
// Input order is kept inside each section and empty sections are dropped.
func GroupSections(summaries []ItemSummary) []Section {
	buckets := map[string][]ItemSummary{}
	for _, summary := range summaries {
		title := enums.ItemSectionOther
		if summary.Category.IsValid() {
			title = summary.Category.String()
		}
		buckets[title] = append(buckets[title], summary)
	}

	order := make([]string, 0, len(enums.ItemCategories())+1)
	for _, category := range enums.ItemCategories() {
		order = append(order, category.String())
	}
	order = append(order, enums.ItemSectionOther)

	sections := make([]Section, 0, len(buckets))
	for _, title := range order {
		if entries := buckets[title]; len(entries) > 0 {
			sections = append(sections, Section{Title: title, Items: entries})
		}
	}
	return sections
}
