package eventstore

import (
	"encoding/json"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
)

// Command is the intent to append one event, optionally with unique
// constraint side effects applied atomically with the insert. It has the
// shape of an Event minus the commit-assigned fields.
type Command struct {
	InstanceID    string
	AggregateType AggregateType
	AggregateID   string
	Type          EventType

	// Revision defaults to 1 when left zero.
	Revision uint16

	// Payload is marshalled to JSON at push time; nil means no payload.
	Payload any

	Creator string
	Owner   string

	// UniqueConstraints are applied in the same transaction as the event.
	UniqueConstraints []*UniqueConstraint
}

// Validate checks the structural requirements the log enforces before it
// touches storage. Violations abort the whole push.
func (c *Command) Validate() error {
	if c.AggregateType == "" {
		return apperr.Validation(nil, "EVENT-Cmd01", "aggregate type must not be empty")
	}
	if c.AggregateID == "" {
		return apperr.Validation(nil, "EVENT-Cmd02", "aggregate id must not be empty")
	}
	if c.Type == "" {
		return apperr.Validation(nil, "EVENT-Cmd03", "event type must not be empty")
	}
	if c.InstanceID == "" {
		return apperr.Validation(nil, "EVENT-Cmd04", "instance id must not be empty")
	}
	for _, constraint := range c.UniqueConstraints {
		if err := constraint.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalPayload encodes the command payload for storage. A nil payload
// yields nil bytes.
func (c *Command) MarshalPayload() ([]byte, error) {
	if c.Payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(c.Payload)
	if err != nil {
		return nil, apperr.Validation(err, "EVENT-Cmd05", "unable to marshal command payload")
	}
	return data, nil
}

// PayloadRevision returns the effective payload schema revision.
func (c *Command) PayloadRevision() uint16 {
	if c.Revision == 0 {
		return 1
	}
	return c.Revision
}
