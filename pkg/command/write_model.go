package command

import (
	"time"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// writeModel is what the engine needs from every concrete model: the
// reducer contract for loading, plus access to the shared frame for the
// optimistic-concurrency check.
type writeModel interface {
	eventstore.Reducer
	Query() *eventstore.SearchQuery
	Frame() *WriteModel
}

// WriteModel is the frame embedded by every concrete write model. It
// tracks which aggregate the model observes and how far it has folded
// the log. ProcessedSequence is the aggregate version used as the
// expected version on push.
type WriteModel struct {
	AggregateID       string
	AggregateType     eventstore.AggregateType
	InstanceID        string
	ResourceOwner     string
	ProcessedSequence uint64
	Position          eventstore.Position
	ChangeDate        time.Time

	// Events holds appended but not yet reduced events. Concrete Reduce
	// implementations iterate it, then call the embedded Reduce to
	// advance the frame and clear it.
	Events []*eventstore.Event
}

// Frame exposes the embedded frame to the engine.
func (wm *WriteModel) Frame() *WriteModel { return wm }

// AppendEvents queues events for the next Reduce.
func (wm *WriteModel) AppendEvents(events ...*eventstore.Event) {
	wm.Events = append(wm.Events, events...)
}

// Reduce advances the frame. Only events of the model's own aggregate
// move the processed sequence; events of subscribed foreign aggregates
// (cascades) update the position alone.
func (wm *WriteModel) Reduce() error {
	for _, event := range wm.Events {
		if event.AggregateType == wm.AggregateType && event.AggregateID == wm.AggregateID {
			wm.ProcessedSequence = event.AggregateVersion
			wm.ChangeDate = event.CreatedAt
			if wm.ResourceOwner == "" {
				wm.ResourceOwner = event.Owner
			}
			if wm.InstanceID == "" {
				wm.InstanceID = event.InstanceID
			}
		}
		wm.Position = event.Position
	}
	wm.Events = nil
	return nil
}

// ObjectDetails derives the result metadata clients use for subsequent
// optimistic writes and cache decisions.
func (wm *WriteModel) ObjectDetails() *domain.ObjectDetails {
	return &domain.ObjectDetails{
		ID:            wm.AggregateID,
		Sequence:      wm.ProcessedSequence,
		EventDate:     wm.ChangeDate,
		ResourceOwner: wm.ResourceOwner,
	}
}
