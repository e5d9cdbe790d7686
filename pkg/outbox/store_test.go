package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return db
}

func itemEvent(eventType enums.OutboxEventType, data any) DomainEvent {
	return DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateItem,
		AggregateID:   uuid.New(),
		Data:          data,
	}
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	emitter := NewEmitter(NewStore(db), nil)
	actor := uuid.New()
	event := itemEvent(enums.EventItemDeleted, map[string]any{"image_paths": []string{"a.jpg"}})
	event.Actor = &ActorRef{UserID: actor}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return emitter.Emit(context.Background(), tx, event)
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, enums.EventItemDeleted, row.EventType)
	assert.Equal(t, event.AggregateID, row.AggregateID)

	env, err := Open(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, row.ID.String(), env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, actor, env.Actor.UserID)
	assert.JSONEq(t, `{"image_paths":["a.jpg"]}`, string(env.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	emitter := NewEmitter(NewStore(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := emitter.Emit(context.Background(), tx, itemEvent(enums.EventItemCreated, map[string]any{})); err != nil {
			return err
		}
		return errors.New("photo insert failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSealRejects(t *testing.T) {
	cases := []struct {
		name  string
		event DomainEvent
	}{
		{name: "unknown event", event: itemEvent("outfit_created", nil)},
		{name: "unknown aggregate", event: DomainEvent{EventType: enums.EventItemCreated, AggregateType: "outfit", AggregateID: uuid.New()}},
		{name: "missing aggregate id", event: DomainEvent{EventType: enums.EventItemCreated, AggregateType: enums.AggregateItem}},
		{name: "unencodable data", event: itemEvent(enums.EventItemCreated, map[string]any{"ch": make(chan int)})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Seal(tc.event)
			assert.Error(t, err)
		})
	}

	emitter := NewEmitter(NewStore(nil), nil)
	assert.Error(t, emitter.Emit(context.Background(), nil, itemEvent(enums.EventItemCreated, nil)))
}

func TestStorePublishLifecycle(t *testing.T) {
	db := setupOutboxTestDB(t)
	store := NewStore(db)
	emitter := NewEmitter(store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, emitter.Emit(ctx, db, itemEvent(enums.EventItemUpdated, map[string]int{"n": i})))
	}

	rows, err := store.Claim(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, store.MarkPublished(db, rows[0].ID))
	require.NoError(t, store.MarkFailed(db, rows[1].ID, errors.New("pubsub unavailable")))
	require.NoError(t, store.DeadLetter(db, rows[2], enums.DLQNonRetryable, errors.New("bad payload"), 3))

	pending, err := store.Claim(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "pubsub unavailable", *pending[0].LastError)

	dead, err := store.DeadLetterFor(ctx, rows[2].ID)
	require.NoError(t, err)
	require.NotNil(t, dead)
	assert.Equal(t, enums.DLQNonRetryable, dead.Reason)
	assert.JSONEq(t, string(rows[2].Payload), string(dead.Payload))

	listed, err := store.DeadLetters(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	missing, err := store.DeadLetterFor(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeadLetterClipsMessages(t *testing.T) {
	db := setupOutboxTestDB(t)
	store := NewStore(db)
	row, err := Seal(itemEvent(enums.EventItemDeleted, json.RawMessage(`{}`)))
	require.NoError(t, err)
	require.NoError(t, store.Append(db, row))

	require.NoError(t, store.DeadLetter(db, row, enums.DLQMaxAttempts, errors.New(strings.Repeat("x", maxErrorLen+50)), 10))

	dead, err := store.DeadLetterFor(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, dead)
	assert.Len(t, dead.ErrorMessage, maxErrorLen)
	assert.Equal(t, row.ID, dead.EventID)
}
