package items

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

const (
	defaultMaxImages     = 12
	defaultMaxImageBytes = 15 << 20
	defaultSignedURLTTL  = time.Hour
)

// Identity is the signed in user a save runs as.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// IdentityProvider resolves the current user.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (Identity, error)
}

// StaticIdentity always resolves to the same user.
type StaticIdentity Identity

func (s StaticIdentity) CurrentUser(context.Context) (Identity, error) {
	if s.UserID == uuid.Nil {
		return Identity{}, errors.New("no user")
	}
	return Identity(s), nil
}

// BlobStore is the part of storage.BlobStore the workflow needs.
type BlobStore interface {
	Upload(ctx context.Context, path string, content []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	IsRemoteURL(uri string) bool
}

// RecordStore persists items and photos.
type RecordStore interface {
	Transact(ctx context.Context, fn func(w RecordWriter) error) error
	FindItem(ctx context.Context, ownerID, itemID uuid.UUID) (*models.Item, error)
	ListPhotos(ctx context.Context, itemID uuid.UUID) ([]models.ItemPhoto, error)
	ListItems(ctx context.Context, query ListQuery) ([]models.Item, error)
	DeleteItem(ctx context.Context, ownerID, itemID uuid.UUID, event outbox.DomainEvent) error
}

// RecordWriter is the transactional write surface handed to Transact callbacks.
type RecordWriter interface {
	InsertItem(ctx context.Context, item *models.Item) error
	InsertPhotos(ctx context.Context, photos []models.ItemPhoto) error
	UpdateItem(ctx context.Context, item *models.Item) error
	MaxSortOrder(ctx context.Context, itemID uuid.UUID) (int, bool, error)
	RecordEvent(ctx context.Context, event outbox.DomainEvent) error
}

// Confirmer decides whether a delete goes ahead.
type Confirmer interface {
	Confirm(ctx context.Context, itemID uuid.UUID) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, itemID uuid.UUID) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, itemID uuid.UUID) (bool, error) {
	return f(ctx, itemID)
}

// Confirmed is a Confirmer with a fixed answer.
type Confirmed bool

func (c Confirmed) Confirm(context.Context, uuid.UUID) (bool, error) { return bool(c), nil }

// SaveInput is the form submitted to Create or Edit.
type SaveInput struct {
	Images   []Candidate
	Category string
	Color    string
	Brand    string
	// Reader resolves local references; nil allows inline and remote images only.
	Reader ContentReader
}

// SaveResult describes a committed save.
type SaveResult struct {
	ItemID         uuid.UUID `json:"item_id"`
	CoverImagePath string    `json:"cover_image_path"`
	UploadedPaths  []string  `json:"uploaded_paths"`
	FirstSortOrder int       `json:"first_sort_order"`
}

// Service is the item persistence workflow plus the wardrobe reads.
type Service interface {
	Create(ctx context.Context, input SaveInput) (*SaveResult, error)
	Edit(ctx context.Context, itemID uuid.UUID, input SaveInput) (*SaveResult, error)
	Delete(ctx context.Context, itemID uuid.UUID, confirmer Confirmer) error
	Discard(ctx context.Context)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, itemID uuid.UUID) (*ItemDetail, error)
}

// ServiceParams wires the workflow collaborators.
type ServiceParams struct {
	Identity      IdentityProvider
	Blobs         BlobStore
	Records       RecordStore
	Observer      Observer
	URLCache      URLCache
	Logger        *logger.Logger
	Metrics       *metrics.SaveMetrics
	MaxImages     int
	MaxImageBytes int64
	SignedURLTTL  time.Duration
	CacheMargin   time.Duration
}

type service struct {
	identity      IdentityProvider
	blobs         BlobStore
	records       RecordStore
	observer      Observer
	logg          *logger.Logger
	metrics       *metrics.SaveMetrics
	urls          *enricher
	maxImages     int
	maxImageBytes int64
	newID         func() uuid.UUID
	now           func() time.Time
}

// NewService validates the params and builds the workflow.
func NewService(params ServiceParams) (Service, error) {
	if params.Identity == nil {
		return nil, fmt.Errorf("identity provider required")
	}
	if params.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("record store required")
	}
	if params.MaxImages <= 0 {
		params.MaxImages = defaultMaxImages
	}
	if params.MaxImageBytes <= 0 {
		params.MaxImageBytes = defaultMaxImageBytes
	}
	if params.SignedURLTTL <= 0 {
		params.SignedURLTTL = defaultSignedURLTTL
	}
	observer := params.Observer
	if observer == nil {
		observer = NewLogObserver(params.Logger, params.Metrics)
	}
	return &service{
		identity:      params.Identity,
		blobs:         params.Blobs,
		records:       params.Records,
		observer:      observer,
		logg:          params.Logger,
		metrics:       params.Metrics,
		urls:          newEnricher(params.Blobs, params.URLCache, params.SignedURLTTL, params.CacheMargin, params.Logger, params.Metrics),
		maxImages:     params.MaxImages,
		maxImageBytes: params.MaxImageBytes,
		newID:         uuid.New,
		now:           time.Now,
	}, nil
}

type itemMeta struct {
	category enums.ItemCategory
	color    *string
	brand    *string
}

func (s *service) validateInput(input SaveInput) (itemMeta, *SaveError) {
	if len(input.Images) > s.maxImages {
		return itemMeta{}, validationError("at most %d images per save", s.maxImages)
	}
	category, err := enums.ParseItemCategory(input.Category)
	if err != nil {
		return itemMeta{}, validationError("%v", err)
	}
	return itemMeta{
		category: category,
		color:    optional(input.Color),
		brand:    optional(input.Brand),
	}, nil
}

func (s *service) resolveIdentity(ctx context.Context, tr *tracker) (Identity, *SaveError) {
	tr.advance(StateResolvingIdentity)
	ident, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return Identity{}, tr.fail(KindAuth, err)
	}
	if ident.UserID == uuid.Nil {
		return Identity{}, tr.fail(KindAuth, errors.New("identity has no user id"))
	}
	return ident, nil
}

func (s *service) Create(ctx context.Context, input SaveInput) (*SaveResult, error) {
	itemID := s.newID()
	tr := newTracker(ctx, OperationCreate, itemID, s.observer)

	if len(input.Images) == 0 {
		return nil, tr.failWith(validationError("at least one image is required"))
	}
	meta, verr := s.validateInput(input)
	if verr != nil {
		return nil, tr.failWith(verr)
	}
	all, verr := acquire(ctx, input.Images, s.blobs, input.Reader, s.maxImageBytes)
	if verr != nil {
		return nil, tr.failWith(verr)
	}
	for i, candidate := range all {
		if candidate.remote {
			return nil, tr.failWith(validationError("image %d: a new item needs new images", i+1))
		}
	}

	ident, serr := s.resolveIdentity(ctx, tr)
	if serr != nil {
		return nil, serr
	}
	paths, serr := s.stage(ctx, tr, ident.UserID, all)
	if serr != nil {
		return nil, serr
	}

	item := &models.Item{
		ID:             itemID,
		OwnerID:        ident.UserID,
		CoverImagePath: paths[0],
		Category:       meta.category,
		Color:          meta.color,
		Brand:          meta.brand,
	}
	photos := s.photoRows(itemID, paths, 0)

	tr.advance(StateWritingItemRecord)
	err := s.records.Transact(ctx, func(w RecordWriter) error {
		if err := w.InsertItem(ctx, item); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		tr.advance(StateWritingPhotoRecords)
		if err := w.InsertPhotos(ctx, photos); err != nil {
			return fmt.Errorf("insert photos: %w", err)
		}
		return w.RecordEvent(ctx, outbox.DomainEvent{
			EventType:     enums.EventItemCreated,
			AggregateType: enums.AggregateItem,
			AggregateID:   itemID,
			Actor:         &outbox.ActorRef{UserID: ident.UserID},
			Data: payloads.ItemCreatedEvent{
				ItemID:         itemID,
				OwnerID:        ident.UserID,
				Category:       meta.category,
				CoverImagePath: paths[0],
				ImagePaths:     paths,
			},
		})
	})
	if err != nil {
		return nil, tr.fail(KindRecord, err)
	}
	tr.advance(StateDone)

	return &SaveResult{
		ItemID:         itemID,
		CoverImagePath: paths[0],
		UploadedPaths:  paths,
		FirstSortOrder: 0,
	}, nil
}

func (s *service) Edit(ctx context.Context, itemID uuid.UUID, input SaveInput) (*SaveResult, error) {
	tr := newTracker(ctx, OperationEdit, itemID, s.observer)

	if itemID == uuid.Nil {
		return nil, tr.failWith(validationError("item id is required"))
	}
	if len(input.Images) == 0 {
		return nil, tr.failWith(validationError("at least one image is required"))
	}
	meta, verr := s.validateInput(input)
	if verr != nil {
		return nil, tr.failWith(verr)
	}
	all, verr := acquire(ctx, input.Images, s.blobs, input.Reader, s.maxImageBytes)
	if verr != nil {
		return nil, tr.failWith(verr)
	}
	news := newContents(all)

	ident, serr := s.resolveIdentity(ctx, tr)
	if serr != nil {
		return nil, serr
	}
	item, err := s.records.FindItem(ctx, ident.UserID, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, tr.fail(KindNotFound, err)
		}
		return nil, tr.fail(KindRecord, err)
	}

	paths, serr := s.stage(ctx, tr, ident.UserID, news)
	if serr != nil {
		return nil, serr
	}

	item.Category = meta.category
	item.Color = meta.color
	item.Brand = meta.brand
	if len(paths) > 0 {
		item.CoverImagePath = paths[0]
	}

	var first int
	tr.advance(StateWritingItemRecord)
	err = s.records.Transact(ctx, func(w RecordWriter) error {
		maxOrder, ok, err := w.MaxSortOrder(ctx, itemID)
		if err != nil {
			return fmt.Errorf("read sort order: %w", err)
		}
		if ok {
			first = maxOrder + 1
		}
		if err := w.UpdateItem(ctx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		tr.advance(StateWritingPhotoRecords)
		if len(paths) > 0 {
			if err := w.InsertPhotos(ctx, s.photoRows(itemID, paths, first)); err != nil {
				return fmt.Errorf("insert photos: %w", err)
			}
		}
		return w.RecordEvent(ctx, outbox.DomainEvent{
			EventType:     enums.EventItemUpdated,
			AggregateType: enums.AggregateItem,
			AggregateID:   itemID,
			Actor:         &outbox.ActorRef{UserID: ident.UserID},
			Data: payloads.ItemUpdatedEvent{
				ItemID:         itemID,
				OwnerID:        ident.UserID,
				Category:       meta.category,
				CoverImagePath: item.CoverImagePath,
				AppendedPaths:  paths,
				FirstSortOrder: first,
			},
		})
	})
	if err != nil {
		return nil, tr.fail(KindRecord, err)
	}
	tr.advance(StateDone)

	return &SaveResult{
		ItemID:         itemID,
		CoverImagePath: item.CoverImagePath,
		UploadedPaths:  paths,
		FirstSortOrder: first,
	}, nil
}

func (s *service) Delete(ctx context.Context, itemID uuid.UUID, confirmer Confirmer) error {
	if itemID == uuid.Nil {
		return validationError("item id is required")
	}
	if confirmer == nil {
		return ErrDeleteNotConfirmed
	}
	ok, err := confirmer.Confirm(ctx, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm delete")
	}
	if !ok {
		if s.logg != nil {
			s.logg.Info(s.logg.WithItemID(ctx, itemID.String()), "item delete declined")
		}
		return ErrDeleteNotConfirmed
	}

	ident, err := s.identity.CurrentUser(ctx)
	if err != nil || ident.UserID == uuid.Nil {
		if err == nil {
			err = errors.New("identity has no user id")
		}
		return &SaveError{Kind: KindAuth, State: StateResolvingIdentity, Err: err}
	}
	item, err := s.records.FindItem(ctx, ident.UserID, itemID)
	if err != nil {
		return s.lookupError(err)
	}
	photos, err := s.records.ListPhotos(ctx, itemID)
	if err != nil {
		return &SaveError{Kind: KindRecord, State: StateResolvingIdentity, Err: err}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventItemDeleted,
		AggregateType: enums.AggregateItem,
		AggregateID:   itemID,
		Actor:         &outbox.ActorRef{UserID: ident.UserID},
		Data: payloads.ItemDeletedEvent{
			ItemID:     itemID,
			OwnerID:    ident.UserID,
			ImagePaths: referencedPaths(item, photos),
		},
	}
	if err := s.records.DeleteItem(ctx, ident.UserID, itemID, event); err != nil {
		return s.lookupError(err)
	}
	s.metrics.IncSave("delete", "success")
	if s.logg != nil {
		s.logg.Info(s.logg.WithItemID(ctx, itemID.String()), "item deleted")
	}
	return nil
}

// Discard marks an abandoned form. Nothing was written, so nothing is undone.
func (s *service) Discard(ctx context.Context) {
	s.metrics.IncSave("discard", "success")
	if s.logg != nil {
		s.logg.Debug(ctx, "item form discarded")
	}
}

func (s *service) lookupError(err error) error {
	if errors.Is(err, ErrItemNotFound) {
		return &SaveError{Kind: KindNotFound, State: StateResolvingIdentity, Err: err}
	}
	return &SaveError{Kind: KindRecord, State: StateResolvingIdentity, Err: err}
}

func (s *service) photoRows(itemID uuid.UUID, paths []string, first int) []models.ItemPhoto {
	rows := make([]models.ItemPhoto, 0, len(paths))
	for i, p := range paths {
		rows = append(rows, models.ItemPhoto{
			ID:        s.newID(),
			ItemID:    itemID,
			ImagePath: p,
			SortOrder: first + i,
		})
	}
	return rows
}

// referencedPaths lists the cover and every photo path once.
func referencedPaths(item *models.Item, photos []models.ItemPhoto) []string {
	seen := make(map[string]struct{}, len(photos)+1)
	out := make([]string, 0, len(photos)+1)
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, photo := range photos {
		add(photo.ImagePath)
	}
	if item != nil {
		add(item.CoverImagePath)
	}
	return out
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
