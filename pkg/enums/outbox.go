package enums

// OutboxAggregateType is the kind of record an event describes.
type OutboxAggregateType string

const AggregateItem OutboxAggregateType = "item"

var aggregateTypes = set[OutboxAggregateType]{AggregateItem}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType names a published event. Values are also the event_type
// message attribute.
type OutboxEventType string

const (
	EventItemCreated OutboxEventType = "item_created"
	EventItemUpdated OutboxEventType = "item_updated"
	EventItemDeleted OutboxEventType = "item_deleted"
)

var eventTypes = set[OutboxEventType]{EventItemCreated, EventItemUpdated, EventItemDeleted}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

// DLQReason records why the relay parked an event.
type DLQReason string

const (
	DLQMaxAttempts  DLQReason = "max_attempts"
	DLQNonRetryable DLQReason = "non_retryable"
)
