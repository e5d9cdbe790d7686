// Package catalog describes the item events the outbox carries: which topic
// they go to and how each payload version decodes.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

// Permanent marks a failure that retrying cannot fix.
type Permanent struct {
	Err error
}

func (p Permanent) Error() string {
	if p.Err == nil {
		return "permanent failure"
	}
	return p.Err.Error()
}

func (p Permanent) Unwrap() error { return p.Err }

// Permanentf builds a Permanent error.
func Permanentf(format string, args ...any) error {
	return Permanent{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err carries a Permanent failure.
func IsPermanent(err error) bool {
	var p Permanent
	return errors.As(err, &p)
}

type entry struct {
	aggregate enums.OutboxAggregateType
	versions  map[int]func() any
}

// Catalog maps event types to their aggregate, topic and payload types.
type Catalog struct {
	topic   string
	entries map[enums.OutboxEventType]entry
}

// Resolved is an outbox row with its envelope and typed payload decoded.
type Resolved struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// Items returns the item event catalog routed to topic. An empty topic still
// decodes payloads but Resolve fails for every row.
func Items(topic string) *Catalog {
	v1 := func(newPayload func() any) map[int]func() any {
		return map[int]func() any{outbox.EnvelopeVersion: newPayload}
	}
	return &Catalog{
		topic: strings.TrimSpace(topic),
		entries: map[enums.OutboxEventType]entry{
			enums.EventItemCreated: {enums.AggregateItem, v1(func() any { return &payloads.ItemCreatedEvent{} })},
			enums.EventItemUpdated: {enums.AggregateItem, v1(func() any { return &payloads.ItemUpdatedEvent{} })},
			enums.EventItemDeleted: {enums.AggregateItem, v1(func() any { return &payloads.ItemDeletedEvent{} })},
		},
	}
}

// ForPubSub builds the catalog for the configured item events topic.
func ForPubSub(cfg config.PubSubConfig) (*Catalog, error) {
	c := Items(cfg.ItemEventsTopic)
	if c.topic == "" {
		return nil, errors.New("item events topic is required")
	}
	return c, nil
}

// Decode turns envelope data into the payload registered for eventType at
// version.
func (c *Catalog) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	e, ok := c.entries[eventType]
	if !ok {
		return nil, Permanentf("unsupported event type %s", eventType)
	}
	newPayload, ok := e.versions[version]
	if !ok {
		return nil, Permanentf("no decoder for %s@v%d", eventType, version)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, Permanentf("payload missing for %s", eventType)
	}
	payload := newPayload()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, Permanentf("decode %s payload: %w", eventType, err)
	}
	return payload, nil
}

// Resolve validates row against the catalog and decodes it. Every error is
// Permanent.
func (c *Catalog) Resolve(row models.OutboxEvent) (*Resolved, error) {
	e, ok := c.entries[row.EventType]
	if !ok {
		return nil, Permanentf("unsupported event type %s", row.EventType)
	}
	if e.aggregate != row.AggregateType {
		return nil, Permanentf("aggregate mismatch: expected %s got %s", e.aggregate, row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanentf("missing aggregate_id")
	}
	if c.topic == "" {
		return nil, Permanentf("no topic configured for %s", row.EventType)
	}
	env, err := outbox.Open(row.Payload)
	if err != nil {
		return nil, Permanent{Err: err}
	}
	payload, err := c.Decode(row.EventType, env.Version, env.Data)
	if err != nil {
		return nil, err
	}
	return &Resolved{Topic: c.topic, Envelope: env, Payload: payload}, nil
}
