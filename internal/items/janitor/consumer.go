package janitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/catalog"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the processed-event keys in redis.
const ConsumerName = "blob-janitor"

const jobName = "blob_janitor"

type blobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// dedupe is satisfied by *pkg/redis.ProcessedSet.
type dedupe interface {
	Mark(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Clear(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer removes the blobs of deleted items. It listens for item_deleted
// events published from the outbox.
type Consumer struct {
	blobs        blobDeleter
	dedupe       dedupe
	subscription *pubsub.Subscriber
	decoders     *catalog.Catalog
	logg         *logger.Logger
	metrics      *metrics.JobMetrics
	now          func() time.Time
}

// NewConsumer wires the janitor to its subscription.
func NewConsumer(blobs blobDeleter, dedupe dedupe, subscription *pubsub.Subscriber, logg *logger.Logger, m *metrics.JobMetrics) (*Consumer, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if dedupe == nil {
		return nil, errors.New("processed set is required")
	}
	if subscription == nil {
		return nil, errors.New("blob janitor subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return newConsumer(blobs, dedupe, subscription, logg, m), nil
}

func newConsumer(blobs blobDeleter, dedupe dedupe, subscription *pubsub.Subscriber, logg *logger.Logger, m *metrics.JobMetrics) *Consumer {
	return &Consumer{
		blobs:        blobs,
		dedupe:       dedupe,
		subscription: subscription,
		decoders:     catalog.Items(""),
		logg:         logg,
		metrics:      m,
		now:          time.Now,
	}
}

// Run processes messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	if eventType != enums.EventItemDeleted {
		c.logg.Debug(logCtx, "skipping non-delete item event")
		return processResult{ack: true}
	}

	envelope, err := outbox.Open(msg.Data)
	if err != nil {
		fields["payload_preview"] = previewBytes(msg.Data, 800)
		c.logg.Error(c.logg.WithFields(ctx, fields), "failed to decode event envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(firstNonEmpty(envelope.EventID, msg.Attributes["event_id"]))
	if err != nil {
		c.logg.Error(logCtx, "event id missing or invalid", err)
		return processResult{ack: true}
	}
	fields["event_id"] = eventID.String()

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(c.logg.WithFields(ctx, fields), "failed to decode item_deleted payload", err)
		return processResult{ack: true}
	}
	event := decoded.(*payloads.ItemDeletedEvent)
	fields["item_id"] = event.ItemID.String()
	logCtx = c.logg.WithFields(ctx, fields)

	first, err := c.dedupe.Mark(logCtx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "processed check failed", err)
		return processResult{nack: true}
	}
	if !first {
		c.logg.Info(logCtx, "item_deleted already handled")
		return processResult{ack: true}
	}

	started := c.now()
	removed, err := c.removeBlobs(logCtx, event)
	c.metrics.Observe(jobName, c.now().Sub(started))
	c.metrics.Done(jobName, err)
	if err != nil {
		if unmarkErr := c.dedupe.Clear(logCtx, ConsumerName, eventID); unmarkErr != nil {
			c.logg.Error(logCtx, "failed to clear processed mark", unmarkErr)
		}
		c.logg.Error(logCtx, "blob removal failed", err)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "blobs_removed", removed), "item blobs removed")
	return processResult{ack: true}
}

// removeBlobs deletes every path owned by the item's owner. Paths outside the
// owner prefix are logged and left alone.
func (c *Consumer) removeBlobs(ctx context.Context, event *payloads.ItemDeletedEvent) (int, error) {
	prefix := event.OwnerID.String() + "/"
	removed := 0
	for _, p := range event.ImagePaths {
		if event.OwnerID == uuid.Nil || !strings.HasPrefix(p, prefix) {
			c.logg.Warn(c.logg.WithField(ctx, "path", p), "skipping blob outside owner prefix")
			continue
		}
		if err := c.blobs.Delete(ctx, p); err != nil {
			return removed, fmt.Errorf("delete %s: %w", p, err)
		}
		removed++
	}
	return removed, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func previewBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
