package items

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

const remoteBase = "https://blobs.test/wardrobe/"

type fakeIdentity struct {
	ident Identity
	err   error
	calls int
}

func (f *fakeIdentity) CurrentUser(context.Context) (Identity, error) {
	f.calls++
	return f.ident, f.err
}

type uploadCall struct {
	path        string
	contentType string
	content     []byte
}

type fakeBlobs struct {
	mu        sync.Mutex
	uploads   []uploadCall
	attempts  int
	failAt    int
	failErr   error
	signErr   map[string]error
	signCalls int
}

func (f *fakeBlobs) Upload(_ context.Context, path string, content []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failAt > 0 && f.attempts == f.failAt {
		return f.failErr
	}
	f.uploads = append(f.uploads, uploadCall{path: path, contentType: contentType, content: content})
	return nil
}

func (f *fakeBlobs) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls++
	if err, ok := f.signErr[path]; ok {
		return "", err
	}
	return remoteBase + path + "?Signature=x&Expires=1", nil
}

func (f *fakeBlobs) IsRemoteURL(uri string) bool {
	return strings.HasPrefix(uri, remoteBase) && strings.Contains(uri, "Signature=")
}

func (f *fakeBlobs) paths() []string {
	out := make([]string, 0, len(f.uploads))
	for _, u := range f.uploads {
		out = append(out, u.path)
	}
	return out
}

// fakeRecords applies a Transact callback only when it returns nil.
type fakeRecords struct {
	items     map[uuid.UUID]models.Item
	photos    []models.ItemPhoto
	events    []outbox.DomainEvent
	transacts int
	findCalls int
	deletes   int

	failInsertPhotos error
	failUpdate       error
	failList         error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{items: map[uuid.UUID]models.Item{}}
}

func (f *fakeRecords) seedItem(item models.Item, paths ...string) {
	f.items[item.ID] = item
	for i, p := range paths {
		f.photos = append(f.photos, models.ItemPhoto{ID: uuid.New(), ItemID: item.ID, ImagePath: p, SortOrder: i})
	}
}

func (f *fakeRecords) Transact(ctx context.Context, fn func(w RecordWriter) error) error {
	f.transacts++
	w := &fakeWriter{parent: f, items: map[uuid.UUID]models.Item{}}
	if err := fn(w); err != nil {
		return err
	}
	for id, item := range w.items {
		f.items[id] = item
	}
	f.photos = append(f.photos, w.photos...)
	f.events = append(f.events, w.events...)
	return nil
}

func (f *fakeRecords) FindItem(_ context.Context, ownerID, itemID uuid.UUID) (*models.Item, error) {
	f.findCalls++
	item, ok := f.items[itemID]
	if !ok || item.OwnerID != ownerID {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (f *fakeRecords) ListPhotos(_ context.Context, itemID uuid.UUID) ([]models.ItemPhoto, error) {
	out := f.photosFor(itemID)
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeRecords) ListItems(_ context.Context, query ListQuery) ([]models.Item, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	var out []models.Item
	for _, item := range f.items {
		if item.OwnerID != query.OwnerID {
			continue
		}
		if c := query.Cursor; c != nil {
			if !(item.CreatedAt.Before(c.CreatedAt) || (item.CreatedAt.Equal(c.CreatedAt) && item.ID.String() < c.ID.String())) {
				continue
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (f *fakeRecords) DeleteItem(_ context.Context, ownerID, itemID uuid.UUID, event outbox.DomainEvent) error {
	f.deletes++
	item, ok := f.items[itemID]
	if !ok || item.OwnerID != ownerID {
		return ErrItemNotFound
	}
	delete(f.items, itemID)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRecords) photosFor(itemID uuid.UUID) []models.ItemPhoto {
	var out []models.ItemPhoto
	for _, p := range f.photos {
		if p.ItemID == itemID {
			out = append(out, p)
		}
	}
	return out
}

type fakeWriter struct {
	parent *fakeRecords
	items  map[uuid.UUID]models.Item
	photos []models.ItemPhoto
	events []outbox.DomainEvent
}

func (w *fakeWriter) InsertItem(_ context.Context, item *models.Item) error {
	w.items[item.ID] = *item
	return nil
}

func (w *fakeWriter) InsertPhotos(_ context.Context, photos []models.ItemPhoto) error {
	if w.parent.failInsertPhotos != nil {
		return w.parent.failInsertPhotos
	}
	w.photos = append(w.photos, photos...)
	return nil
}

func (w *fakeWriter) UpdateItem(_ context.Context, item *models.Item) error {
	if w.parent.failUpdate != nil {
		return w.parent.failUpdate
	}
	if _, ok := w.parent.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	w.items[item.ID] = *item
	return nil
}

func (w *fakeWriter) MaxSortOrder(_ context.Context, itemID uuid.UUID) (int, bool, error) {
	photos := w.parent.photosFor(itemID)
	if len(photos) == 0 {
		return 0, false, nil
	}
	maxOrder := photos[0].SortOrder
	for _, p := range photos[1:] {
		if p.SortOrder > maxOrder {
			maxOrder = p.SortOrder
		}
	}
	return maxOrder, true, nil
}

func (w *fakeWriter) RecordEvent(_ context.Context, event outbox.DomainEvent) error {
	w.events = append(w.events, event)
	return nil
}

type recordingObserver struct {
	transitions []Transition
}

func (r *recordingObserver) Observe(_ context.Context, t Transition) {
	r.transitions = append(r.transitions, t)
}

func (r *recordingObserver) states() []string {
	out := make([]string, 0, len(r.transitions))
	for _, t := range r.transitions {
		out = append(out, t.String())
	}
	return out
}

type fakeCache struct {
	values map[string]string
	gets   int
	sets   int
	ttl    time.Duration
	err    error
}

func (c *fakeCache) CachedURL(_ context.Context, path string) (string, bool, error) {
	c.gets++
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.values[path]
	return v, ok, nil
}

func (c *fakeCache) CacheURL(_ context.Context, path, url string, ttl time.Duration) error {
	c.sets++
	c.ttl = ttl
	if c.values == nil {
		c.values = map[string]string{}
	}
	c.values[path] = url
	return nil
}

type harness struct {
	svc      *service
	identity *fakeIdentity
	blobs    *fakeBlobs
	records  *fakeRecords
	observer *recordingObserver
	owner    uuid.UUID
}

func newHarness() *harness {
	owner := uuid.New()
	h := &harness{
		identity: &fakeIdentity{ident: Identity{UserID: owner, Email: "sam@example.com"}},
		blobs:    &fakeBlobs{},
		records:  newFakeRecords(),
		observer: &recordingObserver{},
		owner:    owner,
	}
	svc, err := NewService(ServiceParams{
		Identity: h.identity,
		Blobs:    h.blobs,
		Records:  h.records,
		Observer: h.observer,
	})
	if err != nil {
		panic(err)
	}
	h.svc = svc.(*service)
	return h
}
