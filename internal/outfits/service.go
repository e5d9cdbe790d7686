package outfits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/internal/items"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// MaxDraftItems caps how many pieces one outfit draft may combine.
const MaxDraftItems = 20

type itemLookup interface {
	FindOwnedItems(ctx context.Context, ownerID uuid.UUID, itemIDs []uuid.UUID) ([]models.Item, error)
}

// DraftRequest carries the items selected on the wardrobe screen.
type DraftRequest struct {
	ItemIDs []uuid.UUID `json:"item_ids" validate:"required"`
}

// Draft is an unsaved outfit built from owned items in selection order.
type Draft struct {
	OwnerID   uuid.UUID           `json:"owner_id"`
	Items     []items.ItemSummary `json:"items"`
	Count     int                 `json:"count"`
	CreatedAt time.Time           `json:"created_at"`
}

// Service builds outfit drafts. Drafts are not persisted.
type Service interface {
	CreateDraft(ctx context.Context, req DraftRequest) (*Draft, error)
}

type ServiceParams struct {
	Identity items.IdentityProvider
	Items    itemLookup
	Logger   *logger.Logger
}

type service struct {
	identity items.IdentityProvider
	items    itemLookup
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Identity == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item lookup is required")
	}
	return &service{
		identity: params.Identity,
		items:    params.Items,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateDraft(ctx context.Context, req DraftRequest) (*Draft, error) {
	ids, err := selection(req.ItemIDs)
	if err != nil {
		return nil, err
	}

	ident, err := s.identity.CurrentUser(ctx)
	if err != nil || ident.UserID == uuid.Nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "could not resolve the signed in user")
	}

	rows, err := s.items.FindOwnedItems(ctx, ident.UserID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load selected items")
	}
	byID := make(map[uuid.UUID]models.Item, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	summaries := make([]items.ItemSummary, 0, len(ids))
	var missing []string
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		summaries = append(summaries, items.ItemSummary{
			ID:             row.ID,
			Category:       row.Category,
			Color:          row.Color,
			Brand:          row.Brand,
			CoverImagePath: row.CoverImagePath,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "selected items not found").
			WithDetails(map[string]any{"item_ids": missing})
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"item_count": len(summaries)}), "outfit draft created")
	}

	return &Draft{
		OwnerID:   ident.UserID,
		Items:     summaries,
		Count:     len(summaries),
		CreatedAt: s.now(),
	}, nil
}

// selection drops nil and repeated ids, keeping the first occurrence.
func selection(ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select at least one item")
	}
	if len(out) > MaxDraftItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("an outfit holds at most %d items", MaxDraftItems))
	}
	return out, nil
}
