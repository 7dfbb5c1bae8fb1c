package command

import (
	"time"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// DeviceAuthWriteModel folds one device-authorization flow.
type DeviceAuthWriteModel struct {
	WriteModel

	State      domain.DeviceAuthState
	ClientID   string
	DeviceCode string
	UserCode   string
	Scope      []string
	ExpiresAt  time.Time
	UserID     string
}

func NewDeviceAuthWriteModel(instanceID, deviceAuthID string) *DeviceAuthWriteModel {
	return &DeviceAuthWriteModel{
		WriteModel: WriteModel{
			AggregateID:   deviceAuthID,
			AggregateType: domain.DeviceAuthAggregate,
			InstanceID:    instanceID,
		},
	}
}

func (wm *DeviceAuthWriteModel) Query() *eventstore.SearchQuery {
	return eventstore.NewSearchQuery(&eventstore.Filter{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.DeviceAuthAggregate},
		AggregateIDs:   []string{wm.AggregateID},
	})
}

func (wm *DeviceAuthWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.DeviceAuthRequested:
			var payload domain.DeviceAuthRequestedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.State = domain.DeviceAuthStateRequested
			wm.ClientID = payload.ClientID
			wm.DeviceCode = payload.DeviceCode
			wm.UserCode = payload.UserCode
			wm.Scope = payload.Scope
			wm.ExpiresAt = payload.ExpiresAt
		case domain.DeviceAuthApproved:
			var payload domain.DeviceAuthApprovedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.State = domain.DeviceAuthStateApproved
			wm.UserID = payload.UserID
		case domain.DeviceAuthDenied:
			wm.State = domain.DeviceAuthStateDenied
		case domain.DeviceAuthCancelled:
			wm.State = domain.DeviceAuthStateCancelled
		case domain.DeviceAuthExpired:
			wm.State = domain.DeviceAuthStateExpired
		}
	}
	return wm.WriteModel.Reduce()
}
