// Package relay moves committed outbox rows to Pub/Sub.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/enums"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox"
	"github.com/angelmondragon/wardrobe-backend/pkg/outbox/catalog"
	"github.com/angelmondragon/wardrobe-backend/pkg/pubsub"
)

const (
	batchJob   = "outbox_publish_batch"
	publishJob = "outbox_publish_event"

	jitterWindow = 250 * time.Millisecond
)

type database interface {
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Rows is the outbox table surface the relay drives.
type Rows interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.DLQReason, cause error, parkAt int) error
}

type resolver interface {
	Resolve(row models.OutboxEvent) (*catalog.Resolved, error)
}

// Sender publishes msg to topic and waits for the server ack.
type Sender interface {
	Ping(ctx context.Context) error
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

// Options tune batching and pacing.
type Options struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
	MaxBackoff     time.Duration
}

// OptionsFrom reads the outbox section and fills defaults.
func OptionsFrom(cfg config.OutboxConfig) Options {
	return Options{
		BatchSize:      cfg.BatchSize,
		MaxAttempts:    cfg.MaxAttempts,
		PollInterval:   time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		PublishTimeout: cfg.PublishTimeout,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 15 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

type Params struct {
	DB      database
	Rows    Rows
	Catalog resolver
	Sender  Sender
	Logger  *logger.Logger
	Metrics *metrics.JobMetrics
	Options Options
}

type Relay struct {
	db      database
	rows    Rows
	catalog resolver
	sender  Sender
	logg    *logger.Logger
	metrics *metrics.JobMetrics
	opts    Options
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(p Params) (*Relay, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Rows == nil:
		return nil, errors.New("outbox store is required")
	case p.Catalog == nil:
		return nil, errors.New("event catalog is required")
	case p.Sender == nil:
		return nil, errors.New("sender is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Relay{
		db:      p.DB,
		rows:    p.Rows,
		catalog: p.Catalog,
		sender:  p.Sender,
		logg:    p.Logger,
		metrics: p.Metrics,
		opts:    p.Options.withDefaults(),
		sleep:   sleepCtx,
	}, nil
}

// Run drains the outbox until ctx is canceled. Full batches are followed
// immediately by the next one; empty polls wait PollInterval and failed
// batches back off exponentially up to MaxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := r.sender.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := r.opts.PollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := r.Drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, r.opts.MaxBackoff)
		case handled > 0:
			wait = r.opts.PollInterval
			continue
		default:
			wait = r.opts.PollInterval
		}
		if err := r.sleep(ctx, wait+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

// Drain claims one batch and settles every row in it inside a single
// transaction. It returns the number of rows claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	started := time.Now()
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.Claim(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 {
		r.metrics.Observe(batchJob, time.Since(started))
	}
	return claimed, err
}

// settle publishes row and records the outcome. Only bookkeeping failures are
// returned; publish failures are written to the row.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	fields := rowFields(row)
	resolved, err := r.catalog.Resolve(row)
	if err == nil {
		fields["topic"] = resolved.Topic
		err = r.publish(ctx, row, resolved)
	}
	logCtx := r.logg.WithFields(ctx, fields)

	if err == nil {
		if markErr := r.rows.MarkPublished(tx, row.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		r.metrics.Done(publishJob, nil)
		r.logg.Info(logCtx, "outbox.event_published")
		return nil
	}

	r.metrics.Done(publishJob, err)
	reason, dead := r.verdict(row, err)
	if !dead {
		r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox.publish_retry")
		if markErr := r.rows.MarkFailed(tx, row.ID, err); markErr != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, markErr)
		}
		return nil
	}

	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"error":        err.Error(),
		"error_reason": reason,
	}), "outbox.event_dead_lettered")
	if markErr := r.rows.DeadLetter(tx, row, reason, err, r.opts.MaxAttempts); markErr != nil {
		return fmt.Errorf("dead letter %s: %w", row.ID, markErr)
	}
	return nil
}

// verdict decides whether a failed row is retried or dead-lettered.
func (r *Relay) verdict(row models.OutboxEvent, err error) (enums.DLQReason, bool) {
	if catalog.IsPermanent(err) || errors.Is(err, pubsub.ErrTopicNotConfigured) {
		return enums.DLQNonRetryable, true
	}
	if row.AttemptCount+1 >= r.opts.MaxAttempts {
		return enums.DLQMaxAttempts, true
	}
	return "", false
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *catalog.Resolved) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()
	return r.sender.Send(ctx, resolved.Topic, Message(row, resolved.Envelope))
}

// Message builds the Pub/Sub message for row. The body is the stored
// envelope; attributes let subscribers filter without decoding it.
func Message(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if env.EventID == "" {
		attrs["event_id"] = row.ID.String()
	}
	if env.Actor != nil && env.Actor.UserID != uuid.Nil {
		attrs["owner_id"] = env.Actor.UserID.String()
	}
	return &gcppubsub.Message{Data: row.Payload, Attributes: attrs}
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
