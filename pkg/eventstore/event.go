package eventstore

import (
	"encoding/json"
	"time"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
)

// AggregateType identifies the kind of entity an event pertains to
// (for example "user", "org", "instance").
type AggregateType string

// EventType is the dotted event name, shaped <aggregate>.<sub>.<verb>
// (for example "user.human.added"). The union of event types is the closed
// domain vocabulary of a deployment.
type EventType string

// Event is the committed, immutable record of a state change.
type Event struct {
	// InstanceID is the tenant partition key; all queries scope to one instance.
	InstanceID string

	// AggregateType and AggregateID identify the entity.
	AggregateType AggregateType
	AggregateID   string

	// AggregateVersion is the per-aggregate monotonic sequence, starting at 1,
	// contiguous with no gaps.
	AggregateVersion uint64

	// Type is the dotted event type.
	Type EventType

	// Revision is the schema version of this event type's payload.
	Revision uint16

	// Payload is the JSON-encoded event data; nil when the event carries none.
	Payload []byte

	// Creator is the identity (user or service) that produced the event.
	Creator string

	// Owner is the resource owner the event is billed to.
	Owner string

	// CreatedAt is the wall-clock timestamp stamped at commit.
	CreatedAt time.Time

	// Position is the global ordering tuple assigned at commit.
	Position Position
}

// UnmarshalPayload decodes the event payload into ptr. Events without a
// payload leave ptr untouched.
func (e *Event) UnmarshalPayload(ptr any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, ptr); err != nil {
		return apperr.Internal(err, "EVENT-Payload01", "unable to unmarshal event payload")
	}
	return nil
}

// Aggregate is the derived read-through view of one aggregate: its latest
// version, position and the events that produced it.
type Aggregate struct {
	ID         string
	Type       AggregateType
	Owner      string
	InstanceID string
	Version    uint64
	Events     []*Event
	Position   Position
}

// AggregateFromEvents folds an ascending event stream of a single aggregate
// into its read-through view. Returns nil for an empty stream.
func AggregateFromEvents(events []*Event) *Aggregate {
	if len(events) == 0 {
		return nil
	}
	last := events[len(events)-1]
	return &Aggregate{
		ID:         last.AggregateID,
		Type:       last.AggregateType,
		Owner:      last.Owner,
		InstanceID: last.InstanceID,
		Version:    last.AggregateVersion,
		Events:     events,
		Position:   last.Position,
	}
}
