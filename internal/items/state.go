package items

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/metrics"
)

// State is a step of the save workflow.
type State string

const (
	StateIdle                State = "idle"
	StateResolvingIdentity   State = "resolving_identity"
	StateUploadingImages     State = "uploading_images"
	StateWritingItemRecord   State = "writing_item_record"
	StateWritingPhotoRecords State = "writing_photo_records"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Operation names the save flavour being tracked.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationEdit   Operation = "edit"
)

var nextStates = map[State][]State{
	StateIdle:                {StateResolvingIdentity},
	StateResolvingIdentity:   {StateUploadingImages},
	StateUploadingImages:     {StateUploadingImages, StateWritingItemRecord},
	StateWritingItemRecord:   {StateWritingPhotoRecords},
	StateWritingPhotoRecords: {StateDone},
}

// CanTransition reports whether from -> to is a legal step. Failed is
// reachable from every non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, candidate := range nextStates[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition is reported to the Observer for every state change.
// Uploaded and Total describe UploadingImages(i/N).
type Transition struct {
	Operation Operation
	ItemID    uuid.UUID
	From      State
	To        State
	Uploaded  int
	Total     int
	Err       error
}

func (t Transition) String() string {
	if t.To == StateUploadingImages {
		return fmt.Sprintf("%s(%d/%d)", t.To, t.Uploaded, t.Total)
	}
	if t.To == StateFailed && t.Err != nil {
		return fmt.Sprintf("%s(%v)", t.To, t.Err)
	}
	return string(t.To)
}

// Observer receives save transitions.
type Observer interface {
	Observe(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) Observe(ctx context.Context, t Transition) { f(ctx, t) }

type noopObserver struct{}

func (noopObserver) Observe(context.Context, Transition) {}

type tracker struct {
	ctx      context.Context
	op       Operation
	itemID   uuid.UUID
	state    State
	total    int
	uploaded int
	observer Observer
}

func newTracker(ctx context.Context, op Operation, itemID uuid.UUID, observer Observer) *tracker {
	if observer == nil {
		observer = noopObserver{}
	}
	return &tracker{ctx: ctx, op: op, itemID: itemID, state: StateIdle, observer: observer}
}

// advance moves to the next state. Illegal transitions are ignored and
// reported as false.
func (t *tracker) advance(to State) bool {
	if !CanTransition(t.state, to) {
		return false
	}
	from := t.state
	t.state = to
	t.observer.Observe(t.ctx, Transition{
		Operation: t.op,
		ItemID:    t.itemID,
		From:      from,
		To:        to,
		Uploaded:  t.uploaded,
		Total:     t.total,
	})
	return true
}

func (t *tracker) startUploads(total int) {
	t.total = total
	t.uploaded = 0
	t.advance(StateUploadingImages)
}

func (t *tracker) uploadedOne() {
	t.uploaded++
	t.advance(StateUploadingImages)
}

// fail records the failure and returns the SaveError stamped with the state
// the workflow failed in.
func (t *tracker) fail(kind Kind, err error) *SaveError {
	saveErr := &SaveError{Kind: kind, State: t.state, Err: err}
	if t.state.Terminal() {
		return saveErr
	}
	from := t.state
	t.state = StateFailed
	t.observer.Observe(t.ctx, Transition{
		Operation: t.op,
		ItemID:    t.itemID,
		From:      from,
		To:        StateFailed,
		Uploaded:  t.uploaded,
		Total:     t.total,
		Err:       saveErr,
	})
	return saveErr
}

// failWith keeps an already classified SaveError, restamping its state.
func (t *tracker) failWith(saveErr *SaveError) *SaveError {
	return t.fail(saveErr.Kind, saveErr.Err)
}

// LogObserver logs every transition and feeds the save metrics.
type LogObserver struct {
	logg    *logger.Logger
	metrics *metrics.SaveMetrics
}

func NewLogObserver(logg *logger.Logger, m *metrics.SaveMetrics) *LogObserver {
	return &LogObserver{logg: logg, metrics: m}
}

func (o *LogObserver) Observe(ctx context.Context, t Transition) {
	o.metrics.IncTransition(string(t.To))
	switch t.To {
	case StateDone:
		o.metrics.IncSave(string(t.Operation), "success")
	case StateFailed:
		outcome := "failed"
		if kind := KindOf(t.Err); kind != "" {
			outcome = string(kind)
		}
		o.metrics.IncSave(string(t.Operation), outcome)
	}

	if o.logg == nil {
		return
	}
	fields := map[string]any{
		"operation": t.Operation,
		"from":      t.From,
		"to":        t.String(),
	}
	if t.ItemID != uuid.Nil {
		fields["item_id"] = t.ItemID.String()
	}
	if t.Err != nil {
		fields["error"] = t.Err.Error()
	}
	logCtx := o.logg.WithFields(ctx, fields)
	if t.To == StateFailed {
		o.logg.Warn(logCtx, "item save failed")
		return
	}
	o.logg.Debug(logCtx, "item save transition")
}
