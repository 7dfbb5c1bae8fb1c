package domain

import (
	"time"

	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// Device-authorization event vocabulary:
// requested → approved|denied|cancelled|expired. Expiry is asserted by
// time against ExpiresAt and realized by a background sweeper that emits
// expired events for overdue requests.
const (
	DeviceAuthRequested eventstore.EventType = "deviceauth.requested"
	DeviceAuthApproved  eventstore.EventType = "deviceauth.approved"
	DeviceAuthDenied    eventstore.EventType = "deviceauth.denied"
	DeviceAuthCancelled eventstore.EventType = "deviceauth.cancelled"
	DeviceAuthExpired   eventstore.EventType = "deviceauth.expired"
)

// UniqueDeviceUserCode is the unique-constraint namespace for user codes,
// so one code can never identify two pending authorizations.
const UniqueDeviceUserCode = "device_user_codes"

type DeviceAuthRequestedPayload struct {
	ClientID   string    `json:"clientId"`
	DeviceCode string    `json:"deviceCode"`
	UserCode   string    `json:"userCode"`
	Scope      []string  `json:"scope,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type DeviceAuthApprovedPayload struct {
	UserID string `json:"userId"`
}
