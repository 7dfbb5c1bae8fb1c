// Package domain holds the IAM vocabulary shared by the command engine
// and the projections: aggregate types, event types, payload shapes,
// state machines and result details.
package domain

import (
	"time"

	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// Aggregate types of the deployment. The event vocabulary is closed for a
// given schema revision; new types ship together with reducers in every
// affected projection and write model.
const (
	UserAggregate        eventstore.AggregateType = "user"
	OrgAggregate         eventstore.AggregateType = "org"
	InstanceAggregate    eventstore.AggregateType = "instance"
	UserGrantAggregate   eventstore.AggregateType = "usergrant"
	AuthRequestAggregate eventstore.AggregateType = "authrequest"
	DeviceAuthAggregate  eventstore.AggregateType = "deviceauth"
)

// ObjectDetails is returned by every successful command. Callers use
// Sequence and EventDate to wait for their own writes to appear in read
// models.
type ObjectDetails struct {
	ID            string
	Sequence      uint64
	EventDate     time.Time
	CreationDate  time.Time
	ResourceOwner string
}

// DetailsFromEvent derives the details of the last committed event.
func DetailsFromEvent(event *eventstore.Event) *ObjectDetails {
	return &ObjectDetails{
		ID:            event.AggregateID,
		Sequence:      event.AggregateVersion,
		EventDate:     event.CreatedAt,
		ResourceOwner: event.Owner,
	}
}
