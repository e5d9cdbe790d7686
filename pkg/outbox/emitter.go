package outbox

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// Emitter queues domain events inside the producer's transaction so an event
// exists exactly when the change that produced it commits.
type Emitter struct {
	store *Store
	logg  *logger.Logger
}

// NewEmitter returns an emitter writing through store. logg may be nil.
func NewEmitter(store *Store, logg *logger.Logger) *Emitter {
	return &Emitter{store: store, logg: logg}
}

func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	row, err := Seal(event)
	if err != nil {
		return err
	}
	if err := e.store.Append(tx, row); err != nil {
		return err
	}
	if e.logg != nil {
		e.logg.Info(e.logg.WithFields(ctx, map[string]any{
			"event_id":     row.ID.String(),
			"event_type":   row.EventType,
			"aggregate_id": row.AggregateID.String(),
		}), "outbox.event_queued")
	}
	return nil
}
