package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProcessedSet remembers which event ids a consumer has handled.
type ProcessedSet struct {
	c   *Client
	ttl time.Duration
}

// Processed returns a set whose marks expire after ttl. Zero keeps them.
func (c *Client) Processed(ttl time.Duration) (*ProcessedSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if ttl < 0 {
		return nil, errors.New("processed ttl must be non-negative")
	}
	return &ProcessedSet{c: c, ttl: ttl}, nil
}

// Mark records eventID for consumer. first is false when it was already there.
func (p *ProcessedSet) Mark(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := p.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return p.c.cmd.SetNX(ctx, key, "1", p.ttl).Result()
}

// Clear removes a mark so a redelivery is handled again.
func (p *ProcessedSet) Clear(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := p.key(consumer, eventID)
	if err != nil {
		return err
	}
	return p.c.del(ctx, key)
}

func (p *ProcessedSet) key(consumer string, eventID uuid.UUID) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return p.c.keys.Key(kindProcessed, consumer, eventID.String()), nil
}
