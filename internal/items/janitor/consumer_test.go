package janitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

type recordingBlobs struct {
	deleted []string
	failOn  string
}

func (r *recordingBlobs) Delete(_ context.Context, path string) error {
	if path == r.failOn {
		return errors.New("storage unavailable")
	}
	r.deleted = append(r.deleted, path)
	return nil
}

type memoryDedupe struct {
	seen     map[uuid.UUID]bool
	err      error
	unmarked []uuid.UUID
}

func (m *memoryDedupe) Mark(_ context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if consumer != ConsumerName {
		return false, errors.New("unexpected consumer " + consumer)
	}
	if m.seen == nil {
		m.seen = map[uuid.UUID]bool{}
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *memoryDedupe) Clear(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(m.seen, eventID)
	m.unmarked = append(m.unmarked, eventID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
}

func deletedMessage(t *testing.T, eventID uuid.UUID, event payloads.ItemDeletedEvent) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:   "msg-1",
		Data: envelope,
		Attributes: map[string]string{
			"event_id":   eventID.String(),
			"event_type": string(enums.EventItemDeleted),
		},
	}
}

func TestProcessRemovesOwnedBlobsOnce(t *testing.T) {
	blobs := &recordingBlobs{}
	dedupe := &memoryDedupe{}
	c := newConsumer(blobs, dedupe, nil, testLogger(), nil)

	owner := uuid.New()
	eventID := uuid.New()
	msg := deletedMessage(t, eventID, payloads.ItemDeletedEvent{
		ItemID:     uuid.New(),
		OwnerID:    owner,
		ImagePaths: []string{owner.String() + "/a.jpg", "someone-else/b.jpg", owner.String() + "/c.png"},
	})

	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected ack, got %+v", res)
	}
	if len(blobs.deleted) != 2 || blobs.deleted[0] != owner.String()+"/a.jpg" || blobs.deleted[1] != owner.String()+"/c.png" {
		t.Fatalf("unexpected deletions %v", blobs.deleted)
	}

	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected duplicate to be acked")
	}
	if len(blobs.deleted) != 2 {
		t.Fatalf("duplicate delivery must not delete again, got %v", blobs.deleted)
	}
}

func TestProcessNacksAndUnmarksOnBlobFailure(t *testing.T) {
	owner := uuid.New()
	blobs := &recordingBlobs{failOn: owner.String() + "/b.jpg"}
	dedupe := &memoryDedupe{}
	c := newConsumer(blobs, dedupe, nil, testLogger(), nil)
	eventID := uuid.New()

	msg := deletedMessage(t, eventID, payloads.ItemDeletedEvent{
		ItemID:     uuid.New(),
		OwnerID:    owner,
		ImagePaths: []string{owner.String() + "/a.jpg", owner.String() + "/b.jpg"},
	})
	if res := c.process(context.Background(), msg); !res.nack {
		t.Fatalf("expected nack, got %+v", res)
	}
	if len(dedupe.unmarked) != 1 || dedupe.unmarked[0] != eventID {
		t.Fatalf("expected the event to be unmarked for redelivery")
	}

	blobs.failOn = ""
	if res := c.process(context.Background(), msg); !res.ack {
		t.Fatalf("expected redelivery to succeed")
	}
}

func TestProcessAcksUnusableMessages(t *testing.T) {
	c := newConsumer(&recordingBlobs{}, &memoryDedupe{}, nil, testLogger(), nil)

	cases := map[string]*pubsub.Message{
		"other event": {Attributes: map[string]string{"event_type": string(enums.EventItemCreated)}, Data: []byte("{}")},
		"bad json":    {Attributes: map[string]string{"event_type": string(enums.EventItemDeleted)}, Data: []byte("{")},
		"no event id": {Attributes: map[string]string{"event_type": string(enums.EventItemDeleted)}, Data: []byte(`{"version":1,"data":{}}`)},
		"unknown version": {
			Attributes: map[string]string{"event_type": string(enums.EventItemDeleted)},
			Data:       []byte(`{"version":9,"eventId":"` + uuid.NewString() + `","data":{}}`),
		},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			if res := c.process(context.Background(), msg); !res.ack {
				t.Fatalf("expected ack, got %+v", res)
			}
		})
	}
}

func TestProcessNacksWhenDedupeUnavailable(t *testing.T) {
	c := newConsumer(&recordingBlobs{}, &memoryDedupe{err: errors.New("redis down")}, nil, testLogger(), nil)
	owner := uuid.New()
	msg := deletedMessage(t, uuid.New(), payloads.ItemDeletedEvent{ItemID: uuid.New(), OwnerID: owner, ImagePaths: []string{owner.String() + "/a.jpg"}})
	if res := c.process(context.Background(), msg); !res.nack {
		t.Fatalf("expected nack, got %+v", res)
	}
}

func TestNewConsumerValidates(t *testing.T) {
	if _, err := NewConsumer(nil, &memoryDedupe{}, nil, testLogger(), nil); err == nil {
		t.Fatalf("expected blob store error")
	}
	if _, err := NewConsumer(&recordingBlobs{}, &memoryDedupe{}, nil, testLogger(), nil); err == nil {
		t.Fatalf("expected subscription error")
	}
}
